package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMRR_SingleQuery(t *testing.T) {
	qrels := Qrels{"q1": {"d1": 1, "d2": 1, "d3": 0}}
	run := Run{"q1": {"d1": 0.9, "d4": 0.8, "d2": 0.7}}

	got := MRR(qrels, run, []int{1, 3})
	assert.InDelta(t, 1.0, got["MRR@1"], 1e-9)
	assert.InDelta(t, 1.0, got["MRR@3"], 1e-9)
}

func TestMRR_FirstRelevantDeeperThanCutoff(t *testing.T) {
	qrels := Qrels{"q1": {"d2": 1}}
	run := Run{"q1": {"d1": 0.9, "d2": 0.8}}

	got := MRR(qrels, run, []int{1, 2})
	assert.InDelta(t, 0.0, got["MRR@1"], 1e-9)
	assert.InDelta(t, 0.5, got["MRR@2"], 1e-9)
}

func TestMRR_AveragesOverAllJudgedQueries(t *testing.T) {
	// q3 is judged but never answered: it still counts in the mean.
	qrels := Qrels{"q1": {"d1": 1}, "q2": {"d2": 1}, "q3": {"d9": 1}}
	run := Run{"q1": {"d1": 1.0}, "q2": {"d3": 1.0}}

	got := MRR(qrels, run, []int{1})
	assert.InDelta(t, 0.33333, got["MRR@1"], 1e-9)
}

func TestMRR_UnjudgedRunQueryIgnored(t *testing.T) {
	qrels := Qrels{"q1": {"d1": 1}}
	run := Run{"q1": {"d1": 1.0}, "mystery": {"d1": 1.0}}

	got := MRR(qrels, run, []int{1})
	assert.InDelta(t, 1.0, got["MRR@1"], 1e-9)
}

func TestMRR_Empty(t *testing.T) {
	got := MRR(Qrels{}, Run{}, []int{1, 10})
	assert.InDelta(t, 0.0, got["MRR@1"], 1e-9)
	assert.InDelta(t, 0.0, got["MRR@10"], 1e-9)
}

func TestEvaluate_SingleQuery(t *testing.T) {
	// Ranking: d1 (relevant), d4 (unjudged), d2 (relevant). Two
	// relevant documents total.
	qrels := Qrels{"q1": {"d1": 1, "d2": 1, "d3": 0}}
	run := Run{"q1": {"d1": 0.9, "d4": 0.8, "d2": 0.7}}

	report := Evaluate(qrels, run, []int{1, 2, 3})

	assert.InDelta(t, 1.0, report.Precision["P@1"], 1e-9)
	assert.InDelta(t, 0.5, report.Precision["P@2"], 1e-9)
	assert.InDelta(t, 0.66667, report.Precision["P@3"], 1e-9)

	assert.InDelta(t, 0.5, report.Recall["Recall@1"], 1e-9)
	assert.InDelta(t, 0.5, report.Recall["Recall@2"], 1e-9)
	assert.InDelta(t, 1.0, report.Recall["Recall@3"], 1e-9)

	assert.InDelta(t, 0.5, report.MAP["MAP@1"], 1e-9)
	assert.InDelta(t, 0.83333, report.MAP["MAP@3"], 1e-9)

	assert.InDelta(t, 1.0, report.NDCG["NDCG@1"], 1e-9)
	assert.InDelta(t, 0.91972, report.NDCG["NDCG@3"], 1e-9)
}

func TestEvaluate_AveragesOverAnsweredJudgedQueries(t *testing.T) {
	// Unlike MRR, the trec_eval style average only covers queries
	// present in both run and qrels: q3 does not drag the mean down.
	qrels := Qrels{"q1": {"d1": 1}, "q2": {"d2": 1}, "q3": {"d9": 1}}
	run := Run{"q1": {"d1": 1.0}, "q2": {"d3": 1.0}}

	report := Evaluate(qrels, run, []int{1})
	assert.InDelta(t, 0.5, report.NDCG["NDCG@1"], 1e-9)
	assert.InDelta(t, 0.5, report.MAP["MAP@1"], 1e-9)
	assert.InDelta(t, 0.5, report.Recall["Recall@1"], 1e-9)
	assert.InDelta(t, 0.5, report.Precision["P@1"], 1e-9)
}

func TestEvaluate_GradedNDCG(t *testing.T) {
	// The run ranks the least relevant document first; gains are the
	// raw grades, discounted by log2(rank+1).
	qrels := Qrels{"q1": {"d1": 3, "d2": 2, "d3": 1}}
	run := Run{"q1": {"d3": 0.9, "d2": 0.8, "d1": 0.7}}

	report := Evaluate(qrels, run, []int{3})
	assert.InDelta(t, 0.79, report.NDCG["NDCG@3"], 1e-9)
}

func TestEvaluate_MAPUsesTotalRelevantAsDenominator(t *testing.T) {
	// Three relevant documents, only two retrieved: a perfect top-2
	// still scores 2/3, not 1.
	qrels := Qrels{"q1": {"d1": 1, "d2": 1, "d3": 1}}
	run := Run{"q1": {"d1": 0.9, "d2": 0.8}}

	report := Evaluate(qrels, run, []int{2})
	assert.InDelta(t, 0.66667, report.MAP["MAP@2"], 1e-9)
	assert.InDelta(t, 0.66667, report.Recall["Recall@2"], 1e-9)
	assert.InDelta(t, 1.0, report.Precision["P@2"], 1e-9)
}

func TestEvaluate_PrecisionDenominatorIsK(t *testing.T) {
	qrels := Qrels{"q1": {"d1": 1}}
	run := Run{"q1": {"d1": 0.9}}

	report := Evaluate(qrels, run, []int{5})
	assert.InDelta(t, 0.2, report.Precision["P@5"], 1e-9)
	assert.InDelta(t, 1.0, report.Recall["Recall@5"], 1e-9)
}

func TestEvaluate_NoRelevantDocuments(t *testing.T) {
	qrels := Qrels{"q1": {"d1": 0}}
	run := Run{"q1": {"d1": 1.0}}

	report := Evaluate(qrels, run, []int{1})
	assert.InDelta(t, 0.0, report.NDCG["NDCG@1"], 1e-9)
	assert.InDelta(t, 0.0, report.MAP["MAP@1"], 1e-9)
	assert.InDelta(t, 0.0, report.Recall["Recall@1"], 1e-9)
	assert.InDelta(t, 0.0, report.Precision["P@1"], 1e-9)
}

func TestEvaluate_Empty(t *testing.T) {
	report := Evaluate(Qrels{}, Run{}, []int{1, 10})
	require.Len(t, report.NDCG, 2)
	assert.InDelta(t, 0.0, report.NDCG["NDCG@1"], 1e-9)
	assert.InDelta(t, 0.0, report.MAP["MAP@10"], 1e-9)
}

func TestRankDocuments_TiesBreakByDocIDDescending(t *testing.T) {
	ranked := rankDocuments(map[string]float64{"da": 0.5, "db": 0.5, "dc": 0.9})
	assert.Equal(t, []string{"dc", "db", "da"}, ranked)

	qrels := Qrels{"q1": {"da": 1}}
	run := Run{"q1": {"da": 0.5, "db": 0.5}}

	got := MRR(qrels, run, []int{1, 2})
	assert.InDelta(t, 0.0, got["MRR@1"], 1e-9, "tie must rank db above da")
	assert.InDelta(t, 0.5, got["MRR@2"], 1e-9)
}

func TestRound5(t *testing.T) {
	assert.InDelta(t, 0.33333, round5(1.0/3.0), 1e-12)
	assert.InDelta(t, 0.66667, round5(2.0/3.0), 1e-12)
	assert.InDelta(t, 1.0, round5(1.0), 1e-12)
	assert.InDelta(t, 0.0, round5(0.0), 1e-12)
}
