package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	ingestCollection string
	ingestBatch      int
	ingestNoProgress bool
)

// ingestCmd loads documents into a collection on a vectord server
var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest documents into a vectord server",
	Long: `Ingest documents, one per line, into a collection on a vectord server.

Each line becomes one document. Vectors are computed server-side with
passage instructions applied. Reads from stdin when no file is given
or the file is "-".

Examples:
  # Ingest a corpus into the default collection
  vectorctl ingest corpus.txt

  # Ingest into a named collection in batches of 128
  vectorctl ingest --collection papers --batch 128 corpus.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCollection, "collection", "", "target collection (default: server default)")
	ingestCmd.Flags().IntVar(&ingestBatch, "batch", 64, "documents per request")
	ingestCmd.Flags().BoolVar(&ingestNoProgress, "no-progress", false, "disable the progress bar")
}

// IngestDocument matches internal/server IngestDocument
type IngestDocument struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestRequest matches internal/server IngestRequest
type IngestRequest struct {
	Collection string           `json:"collection,omitempty"`
	Documents  []IngestDocument `json:"documents"`
}

// IngestResponse matches internal/server IngestResponse
type IngestResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	data, err := readInput(name)
	if err != nil {
		return err
	}
	lines := splitLines(string(data))
	if len(lines) == 0 {
		return fmt.Errorf("no documents to ingest")
	}
	if ingestBatch <= 0 {
		return fmt.Errorf("batch must be > 0, got %d", ingestBatch)
	}

	url := fmt.Sprintf("%s/v1/documents", serverURL)
	client := &http.Client{
		Timeout: 120 * time.Second,
	}

	var bar *progressbar.ProgressBar
	if !ingestNoProgress {
		bar = progressbar.Default(int64(len(lines)), "ingesting")
	}

	ingested := 0
	for startIdx := 0; startIdx < len(lines); startIdx += ingestBatch {
		end := startIdx + ingestBatch
		if end > len(lines) {
			end = len(lines)
		}

		docs := make([]IngestDocument, 0, end-startIdx)
		for _, line := range lines[startIdx:end] {
			docs = append(docs, IngestDocument{Content: line})
		}

		payload, err := json.Marshal(IngestRequest{
			Collection: ingestCollection,
			Documents:  docs,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
		if err != nil {
			if bar != nil {
				_ = bar.Exit()
			}
			fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
			return err
		}

		if resp.StatusCode != http.StatusOK {
			err := httpStatusError(resp)
			resp.Body.Close()
			if bar != nil {
				_ = bar.Exit()
			}
			return fmt.Errorf("batch starting at document %d: %w", startIdx, err)
		}

		var ingestResp IngestResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&ingestResp)
		resp.Body.Close()
		if decodeErr != nil {
			if bar != nil {
				_ = bar.Exit()
			}
			return fmt.Errorf("failed to decode response: %w", decodeErr)
		}

		ingested += ingestResp.Count
		if bar != nil {
			_ = bar.Set(end)
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}
	fmt.Fprintf(os.Stderr, "Ingested %d document(s)\n", ingested)

	return nil
}
