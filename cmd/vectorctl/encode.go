package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/devices"
	"github.com/fyrsmithlabs/vectord/internal/embedder"
	"github.com/fyrsmithlabs/vectord/internal/encode"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/pool"
)

var (
	encodeConfigPath string
	encodeKind       string
	encodeOutput     string
	encodeBatchSize  int
	encodeNoProgress bool
)

// encodeCmd embeds texts with the local encoder, no daemon required
var encodeCmd = &cobra.Command{
	Use:   "encode [file]",
	Short: "Embed texts with the local encoder",
	Long: `Embed texts, one per line, using the locally configured encoder.

Runs without a daemon: the model loads in-process and texts are
dispatched across the configured devices. Vectors are written as JSON
Lines, one {"text", "vector"} object per input line, in input order.
Reads from stdin when no file is given or the file is "-".

Examples:
  # Encode a file of texts
  vectorctl encode corpus.txt > vectors.jsonl

  # Encode from stdin with passage instructions applied
  cat corpus.txt | vectorctl encode --kind passage

  # Larger batches across explicit devices
  DEVICES_TARGETS=cuda:0,cuda:1 vectorctl encode --batch-size 512 corpus.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().StringVar(&encodeConfigPath, "config", "", "path to config file (default ~/.config/vectord/config.yaml)")
	encodeCmd.Flags().StringVar(&encodeKind, "kind", "plain", "instruction kind: plain, query or passage")
	encodeCmd.Flags().StringVarP(&encodeOutput, "output", "o", "", "output file (default stdout)")
	encodeCmd.Flags().IntVar(&encodeBatchSize, "batch-size", 0, "encoder batch size (default from config)")
	encodeCmd.Flags().BoolVar(&encodeNoProgress, "no-progress", false, "disable the progress bar")
}

// encodedText is one output line of the encode command.
type encodedText struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

func runEncode(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	data, err := readInput(name)
	if err != nil {
		return err
	}
	texts := splitLines(string(data))
	if len(texts) == 0 {
		return fmt.Errorf("no texts to encode")
	}

	enc, err := initEncoder(encodeConfigPath)
	if err != nil {
		return err
	}
	defer enc.Close()

	ctx := context.Background()

	fmt.Fprintf(os.Stderr, "Loading model %s...\n", enc.cfg.Encoder.Model)
	if err := enc.service.Warm(ctx); err != nil {
		return fmt.Errorf("failed to warm encoder: %w", err)
	}

	var progress pool.Progress
	var bar *progressbar.ProgressBar
	if !encodeNoProgress {
		bar = progressbar.Default(int64(len(texts)), "encoding")
		progress = func(completed, total int) {
			_ = bar.Set(completed)
		}
	}

	opts := encode.Options{BatchSize: encodeBatchSize}

	start := time.Now()
	var vectors [][]float32
	switch encodeKind {
	case "plain", "":
		vectors, err = enc.service.EncodeWithProgress(ctx, texts, opts, progress)
	case "query":
		vectors, err = enc.service.EncodeQueriesWithProgress(ctx, texts, opts, progress)
	case "passage":
		vectors, err = enc.service.EncodeCorpusWithProgress(ctx, texts, opts, progress)
	default:
		if bar != nil {
			_ = bar.Exit()
		}
		return fmt.Errorf("unknown kind %q (want plain, query or passage)", encodeKind)
	}
	if err != nil {
		if bar != nil {
			_ = bar.Exit()
		}
		return fmt.Errorf("encoding failed: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	elapsed := time.Since(start)

	out := os.Stdout
	if encodeOutput != "" && encodeOutput != "-" {
		f, err := os.Create(encodeOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", encodeOutput, err)
		}
		defer f.Close()
		out = f
	}

	writer := json.NewEncoder(out)
	for i, v := range vectors {
		if err := writer.Encode(encodedText{Text: texts[i], Vector: v}); err != nil {
			return fmt.Errorf("failed to write vector %d: %w", i, err)
		}
	}

	fmt.Fprintf(os.Stderr, "Encoded %d text(s) in %s (%d dims, devices: %s)\n",
		len(vectors), elapsed.Round(time.Millisecond),
		enc.provider.Dimension(), strings.Join(enc.service.Targets(), ","))

	return nil
}

// localEncoder bundles the in-process encoder stack for commands that
// run without a daemon.
type localEncoder struct {
	cfg      *config.Config
	provider embedder.Provider
	service  *embedder.Service
}

// Close releases the encoder backend.
func (l *localEncoder) Close() {
	if err := l.provider.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: encoder close failed: %v\n", err)
	}
}

// initEncoder loads configuration and builds the encoder stack the
// same way the daemon does, with logs routed to stderr so data output
// on stdout stays clean.
func initEncoder(configPath string) (*localEncoder, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Level = zapcore.WarnLevel
	logCfg.Format = "console"
	logCfg.Output = "stderr"
	logCfg.Sampling.Enabled = false
	logCfg.Caller.Enabled = false
	logWrapper, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger := logWrapper.Underlying()

	provider, err := embedder.NewProvider(embedder.ProviderConfig{
		Provider:          cfg.Encoder.Provider,
		Model:             cfg.Encoder.Model,
		CacheDir:          cfg.Encoder.CacheDir,
		MaxLength:         cfg.Encoder.MaxLength,
		Endpoints:         cfg.Encoder.TEI.Endpoints,
		APIKey:            cfg.Encoder.TEI.APIKey.Value(),
		RequestsPerSecond: cfg.Encoder.TEI.RequestsPerSecond,
		Burst:             cfg.Encoder.TEI.Burst,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	service, err := embedder.NewService(embedder.Config{
		Targets: devices.ParseList(cfg.Devices.Targets),
		Model:   cfg.Encoder.Model,
		Options: encode.Options{
			BatchSize: cfg.Encoder.BatchSize,
			MaxLength: cfg.Encoder.MaxLength,
		},
		QueryInstruction:         cfg.Encoder.QueryInstruction,
		QueryInstructionFormat:   cfg.Encoder.QueryInstructionFormat,
		PassageInstruction:       cfg.Encoder.PassageInstruction,
		PassageInstructionFormat: cfg.Encoder.PassageInstructionFormat,
	}, provider, embedder.WithLogger(logger))
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to create embedder service: %w", err)
	}

	return &localEncoder{cfg: cfg, provider: provider, service: service}, nil
}
