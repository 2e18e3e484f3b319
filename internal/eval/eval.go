// Package eval computes standard retrieval quality metrics over a set
// of judged queries: MRR, NDCG, MAP, Recall and Precision at a list of
// rank cutoffs. Semantics follow trec_eval so numbers are comparable
// with published benchmarks: graded gains for NDCG, the full relevant
// count as the MAP and Recall denominator, and score ties broken by
// document id descending.
//
// The package is pure computation. Callers assemble a Run from search
// results (see vectorstore.SearchBatch) and load Qrels however they
// like; TREC file parsing lives with the CLI.
package eval

import (
	"fmt"
	"math"
	"sort"
)

// Qrels maps query id to document id to graded relevance. A document
// counts as relevant when its grade is positive.
type Qrels map[string]map[string]int

// Run maps query id to document id to retrieval score, higher better.
type Run map[string]map[string]float64

// Report holds averaged metrics keyed "NDCG@k", "MAP@k", "Recall@k"
// and "P@k" for each requested cutoff, rounded to 5 decimals.
type Report struct {
	NDCG      map[string]float64
	MAP       map[string]float64
	Recall    map[string]float64
	Precision map[string]float64
}

// MRR computes mean reciprocal rank at each cutoff. The mean is taken
// over every query in qrels: queries the run never answered count as
// zero. Queries in the run without judgments are ignored.
func MRR(qrels Qrels, run Run, ks []int) map[string]float64 {
	sums := make(map[int]float64, len(ks))

	for queryID, scores := range run {
		judgments, ok := qrels[queryID]
		if !ok {
			continue
		}
		ranked := rankDocuments(scores)
		for _, k := range ks {
			sums[k] += reciprocalRank(ranked, judgments, k)
		}
	}

	out := make(map[string]float64, len(ks))
	for _, k := range ks {
		mean := 0.0
		if len(qrels) > 0 {
			mean = sums[k] / float64(len(qrels))
		}
		out[fmt.Sprintf("MRR@%d", k)] = round5(mean)
	}
	return out
}

// Evaluate computes NDCG, MAP, Recall and Precision at each cutoff,
// averaged over the queries that appear in both run and qrels.
func Evaluate(qrels Qrels, run Run, ks []int) Report {
	report := Report{
		NDCG:      make(map[string]float64, len(ks)),
		MAP:       make(map[string]float64, len(ks)),
		Recall:    make(map[string]float64, len(ks)),
		Precision: make(map[string]float64, len(ks)),
	}

	ndcgSums := make(map[int]float64, len(ks))
	mapSums := make(map[int]float64, len(ks))
	recallSums := make(map[int]float64, len(ks))
	precisionSums := make(map[int]float64, len(ks))

	evaluated := 0
	for queryID, scores := range run {
		judgments, ok := qrels[queryID]
		if !ok {
			continue
		}
		evaluated++

		ranked := rankDocuments(scores)
		for _, k := range ks {
			ndcgSums[k] += ndcgAt(ranked, judgments, k)
			mapSums[k] += averagePrecisionAt(ranked, judgments, k)
			recallSums[k] += recallAt(ranked, judgments, k)
			precisionSums[k] += precisionAt(ranked, judgments, k)
		}
	}

	for _, k := range ks {
		n := float64(evaluated)
		if evaluated == 0 {
			n = 1
		}
		report.NDCG[fmt.Sprintf("NDCG@%d", k)] = round5(ndcgSums[k] / n)
		report.MAP[fmt.Sprintf("MAP@%d", k)] = round5(mapSums[k] / n)
		report.Recall[fmt.Sprintf("Recall@%d", k)] = round5(recallSums[k] / n)
		report.Precision[fmt.Sprintf("P@%d", k)] = round5(precisionSums[k] / n)
	}
	return report
}

// rankDocuments orders a query's scored documents best first. Equal
// scores rank the lexicographically larger document id first, the
// trec_eval convention, so results are deterministic.
func rankDocuments(scores map[string]float64) []string {
	docs := make([]string, 0, len(scores))
	for doc := range scores {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if scores[docs[i]] != scores[docs[j]] {
			return scores[docs[i]] > scores[docs[j]]
		}
		return docs[i] > docs[j]
	})
	return docs
}

func relevantCount(judgments map[string]int) int {
	count := 0
	for _, grade := range judgments {
		if grade > 0 {
			count++
		}
	}
	return count
}

// cutoff returns the first k elements, or all of them when k exceeds
// the length.
func cutoff[T any](items []T, k int) []T {
	if k < len(items) {
		return items[:k]
	}
	return items
}

// reciprocalRank returns 1/rank of the first relevant document within
// the top k, or 0 when none is relevant.
func reciprocalRank(ranked []string, judgments map[string]int, k int) float64 {
	for i, doc := range cutoff(ranked, k) {
		if judgments[doc] > 0 {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// precisionAt uses k as the denominator even when fewer documents were
// retrieved.
func precisionAt(ranked []string, judgments map[string]int, k int) float64 {
	hits := 0
	for _, doc := range cutoff(ranked, k) {
		if judgments[doc] > 0 {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

func recallAt(ranked []string, judgments map[string]int, k int) float64 {
	total := relevantCount(judgments)
	if total == 0 {
		return 0
	}
	hits := 0
	for _, doc := range cutoff(ranked, k) {
		if judgments[doc] > 0 {
			hits++
		}
	}
	return float64(hits) / float64(total)
}

// averagePrecisionAt sums precision at each relevant rank within the
// top k and divides by the query's total relevant count, not by k.
func averagePrecisionAt(ranked []string, judgments map[string]int, k int) float64 {
	total := relevantCount(judgments)
	if total == 0 {
		return 0
	}
	hits := 0
	sum := 0.0
	for i, doc := range cutoff(ranked, k) {
		if judgments[doc] > 0 {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return sum / float64(total)
}

// ndcgAt computes normalized discounted cumulative gain with linear
// gains, the ideal ordering taken over all judged documents.
func ndcgAt(ranked []string, judgments map[string]int, k int) float64 {
	dcg := 0.0
	for i, doc := range cutoff(ranked, k) {
		if gain := judgments[doc]; gain > 0 {
			dcg += float64(gain) / math.Log2(float64(i+2))
		}
	}

	gains := make([]int, 0, len(judgments))
	for _, grade := range judgments {
		if grade > 0 {
			gains = append(gains, grade)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(gains)))

	idcg := 0.0
	for i, gain := range cutoff(gains, k) {
		idcg += float64(gain) / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
