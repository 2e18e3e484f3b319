package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vectord/internal/eval"
)

var (
	evalQrelsPath string
	evalRunPath   string
	evalKs        []int
	evalJSON      bool
)

// evalCmd scores a retrieval run against relevance judgments
var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score a retrieval run against relevance judgments",
	Long: `Score a retrieval run against TREC-format relevance judgments.

The qrels file has one judgment per line:

  <query-id> <iteration> <doc-id> <grade>

The run file has one retrieved document per line:

  <query-id> Q0 <doc-id> <rank> <score> <tag>

Ranks in the run file are ignored; documents are reranked by score,
ties broken by doc id. MRR averages over all judged queries, the
other metrics over judged queries the run answered.

Examples:
  # Standard cutoffs
  vectorctl eval --qrels qrels.txt --run run.txt

  # Specific cutoffs, machine-readable
  vectorctl eval --qrels qrels.txt --run run.txt --k 10,100 --json`,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalQrelsPath, "qrels", "", "TREC qrels file (required)")
	evalCmd.Flags().StringVar(&evalRunPath, "run", "", "TREC run file (required)")
	evalCmd.Flags().IntSliceVar(&evalKs, "k", []int{1, 3, 5, 10, 100}, "rank cutoffs")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output metrics as JSON")
	_ = evalCmd.MarkFlagRequired("qrels")
	_ = evalCmd.MarkFlagRequired("run")
}

// evalReport is the JSON output of the eval command.
type evalReport struct {
	Queries   int                `json:"queries"`
	Answered  int                `json:"answered"`
	MRR       map[string]float64 `json:"mrr"`
	NDCG      map[string]float64 `json:"ndcg"`
	MAP       map[string]float64 `json:"map"`
	Recall    map[string]float64 `json:"recall"`
	Precision map[string]float64 `json:"precision"`
}

func runEval(cmd *cobra.Command, args []string) error {
	for _, k := range evalKs {
		if k <= 0 {
			return fmt.Errorf("cutoffs must be > 0, got %d", k)
		}
	}

	qrelsData, err := os.ReadFile(evalQrelsPath)
	if err != nil {
		return fmt.Errorf("failed to read qrels file: %w", err)
	}
	qrels, err := parseQrels(string(qrelsData))
	if err != nil {
		return fmt.Errorf("%s: %w", evalQrelsPath, err)
	}

	runData, err := os.ReadFile(evalRunPath)
	if err != nil {
		return fmt.Errorf("failed to read run file: %w", err)
	}
	run, err := parseRun(string(runData))
	if err != nil {
		return fmt.Errorf("%s: %w", evalRunPath, err)
	}

	answered := 0
	for queryID := range run {
		if _, ok := qrels[queryID]; ok {
			answered++
		}
	}

	scores := eval.Evaluate(qrels, run, evalKs)
	report := evalReport{
		Queries:   len(qrels),
		Answered:  answered,
		MRR:       eval.MRR(qrels, run, evalKs),
		NDCG:      scores.NDCG,
		MAP:       scores.MAP,
		Recall:    scores.Recall,
		Precision: scores.Precision,
	}

	if evalJSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	for _, k := range evalKs {
		fmt.Fprintf(w, "MRR@%d\t%.5f\n", k, report.MRR[fmt.Sprintf("MRR@%d", k)])
	}
	for _, k := range evalKs {
		fmt.Fprintf(w, "NDCG@%d\t%.5f\n", k, report.NDCG[fmt.Sprintf("NDCG@%d", k)])
	}
	for _, k := range evalKs {
		fmt.Fprintf(w, "MAP@%d\t%.5f\n", k, report.MAP[fmt.Sprintf("MAP@%d", k)])
	}
	for _, k := range evalKs {
		fmt.Fprintf(w, "Recall@%d\t%.5f\n", k, report.Recall[fmt.Sprintf("Recall@%d", k)])
	}
	for _, k := range evalKs {
		fmt.Fprintf(w, "P@%d\t%.5f\n", k, report.Precision[fmt.Sprintf("P@%d", k)])
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "\n%d judged query(ies), %d answered by the run\n", report.Queries, report.Answered)

	return nil
}

// parseQrels parses TREC qrels lines: "<query-id> <iter> <doc-id> <grade>".
// The iteration column is ignored. Blank lines are skipped.
func parseQrels(data string) (eval.Qrels, error) {
	qrels := make(eval.Qrels)
	for i, line := range strings.Split(data, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: want 4 fields (query-id iter doc-id grade), got %d", i+1, len(fields))
		}
		grade, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid grade %q: %w", i+1, fields[3], err)
		}
		queryID, docID := fields[0], fields[2]
		if qrels[queryID] == nil {
			qrels[queryID] = make(map[string]int)
		}
		qrels[queryID][docID] = grade
	}
	if len(qrels) == 0 {
		return nil, fmt.Errorf("no judgments found")
	}
	return qrels, nil
}

// parseRun parses TREC run lines: "<query-id> Q0 <doc-id> <rank> <score> <tag>".
// The literal, rank and tag columns are ignored. Blank lines are skipped.
func parseRun(data string) (eval.Run, error) {
	run := make(eval.Run)
	for i, line := range strings.Split(data, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 6 {
			return nil, fmt.Errorf("line %d: want 6 fields (query-id Q0 doc-id rank score tag), got %d", i+1, len(fields))
		}
		score, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid score %q: %w", i+1, fields[4], err)
		}
		queryID, docID := fields[0], fields[2]
		if run[queryID] == nil {
			run[queryID] = make(map[string]float64)
		}
		run[queryID][docID] = score
	}
	if len(run) == 0 {
		return nil, fmt.Errorf("no results found")
	}
	return run, nil
}
