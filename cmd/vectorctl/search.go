package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	searchCollection string
	searchK          int
	searchExact      bool
	searchJSON       bool
)

// searchCmd queries a running vectord server
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search a collection on a vectord server",
	Long: `Search a collection for documents similar to a query.

The query text is embedded server-side with the query instruction
applied, then matched against the stored vectors.

Examples:
  # Search the default collection
  vectorctl search "how do transformers work"

  # Top 3 from a named collection, exact scan
  vectorctl search --collection papers --k 3 --exact "attention"

  # Machine-readable output
  vectorctl search --json "attention"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchCollection, "collection", "", "collection to search (default: server default)")
	searchCmd.Flags().IntVar(&searchK, "k", 10, "number of results to return")
	searchCmd.Flags().BoolVar(&searchExact, "exact", false, "bypass the approximate index and scan exactly")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
}

// SearchRequest matches internal/server SearchRequest
type SearchRequest struct {
	Query      string `json:"query"`
	Collection string `json:"collection,omitempty"`
	K          int    `json:"k,omitempty"`
	Exact      bool   `json:"exact,omitempty"`
}

// SearchResult matches internal/vectorstore SearchResult
type SearchResult struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchResponse matches internal/server SearchResponse
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	req := SearchRequest{
		Query:      args[0],
		Collection: searchCollection,
		K:          searchK,
		Exact:      searchExact,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/search", serverURL)
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpStatusError(resp)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if searchJSON {
		out, err := json.MarshalIndent(searchResp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	if searchResp.Count == 0 {
		fmt.Fprintln(os.Stderr, "No results found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tID\tCONTENT")
	for _, r := range searchResp.Results {
		fmt.Fprintf(w, "%.4f\t%s\t%s\n", r.Score, r.ID, truncate(r.Content, 60))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "\n%d result(s)\n", searchResp.Count)

	return nil
}

// truncate shortens s to at most n runes, appending "..." when cut.
// Newlines are flattened so tabwriter rows stay on one line.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
