package embedder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/devices"
	"github.com/fyrsmithlabs/vectord/internal/encode"
	"github.com/fyrsmithlabs/vectord/internal/pool"
)

type encodeCall struct {
	device string
	texts  []string
	opts   encode.Options
}

// fakeEncoder derives a two-element vector from each text (first byte
// and length), so reordered or rewritten inputs produce visibly
// different output.
type fakeEncoder struct {
	mu    sync.Mutex
	calls []encodeCall
	err   error
}

var _ encode.Encoder = (*fakeEncoder)(nil)

func (f *fakeEncoder) EncodeBatch(_ context.Context, texts []string, device string, opts encode.Options) ([][]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, encodeCall{
		device: device,
		texts:  append([]string(nil), texts...),
		opts:   opts,
	})
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return deriveVectors(texts), nil
}

func (f *fakeEncoder) recorded() []encodeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]encodeCall(nil), f.calls...)
}

type warmableEncoder struct {
	fakeEncoder
	warms atomic.Int32
}

var _ encode.Warmer = (*warmableEncoder)(nil)

func (w *warmableEncoder) Warm(context.Context) error {
	w.warms.Add(1)
	return nil
}

// stubProber reports a fixed accelerator topology.
type stubProber struct {
	cuda, npu int
	mps       bool
}

func (p stubProber) CUDADevices() int   { return p.cuda }
func (p stubProber) NPUDevices() int    { return p.npu }
func (p stubProber) MPSAvailable() bool { return p.mps }

func deriveVectors(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(text[0]), float32(len(text))}
	}
	return out
}

func newTestService(t *testing.T, cfg Config, enc encode.Encoder) *Service {
	t.Helper()
	s, err := NewService(cfg, enc)
	require.NoError(t, err)
	return s
}

func TestNewService_RequiresEncoder(t *testing.T) {
	_, err := NewService(Config{Targets: []string{"cpu"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, pool.ErrEncoderNotReady)
}

func TestService_SingleTargetFastPath(t *testing.T) {
	enc := &fakeEncoder{}
	s := newTestService(t, Config{Targets: []string{"cuda:0"}}, enc)

	texts := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	out, err := s.Encode(context.Background(), texts, encode.Options{})
	require.NoError(t, err)
	assert.Equal(t, deriveVectors(texts), out)

	// One target means one direct call with the whole batch, no
	// chunking and no pool.
	calls := enc.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "cuda:0", calls[0].device)
	assert.Equal(t, texts, calls[0].texts)
}

func TestService_MultiTargetUsesPool(t *testing.T) {
	enc := &fakeEncoder{}
	s := newTestService(t, Config{Targets: []string{"cuda:0", "cuda:1"}}, enc)

	texts := []string{"a", "b", "c", "d", "e"}
	out, err := s.Encode(context.Background(), texts, encode.Options{})
	require.NoError(t, err)
	assert.Equal(t, deriveVectors(texts), out)

	calls := enc.recorded()
	require.Len(t, calls, 2)
	var chunks [][]string
	for _, call := range calls {
		assert.Contains(t, []string{"cuda:0", "cuda:1"}, call.device)
		chunks = append(chunks, call.texts)
	}
	assert.ElementsMatch(t, [][]string{{"a", "b", "c"}, {"d", "e"}}, chunks)
}

func TestService_FastPathMatchesPool(t *testing.T) {
	texts := []string{"the", "quick", "brown", "fox", "jumps", "over", "it"}

	single := newTestService(t, Config{Targets: []string{"cuda:0"}}, &fakeEncoder{})
	multi := newTestService(t, Config{Targets: []string{"cuda:0", "cuda:1", "cuda:2"}}, &fakeEncoder{})

	fromSingle, err := single.Encode(context.Background(), texts, encode.Options{})
	require.NoError(t, err)
	fromMulti, err := multi.Encode(context.Background(), texts, encode.Options{})
	require.NoError(t, err)

	assert.Equal(t, fromSingle, fromMulti)
}

func TestService_EmptyInput(t *testing.T) {
	enc := &fakeEncoder{}
	s := newTestService(t, Config{Targets: []string{"cuda:0", "cuda:1"}}, enc)

	out, err := s.Encode(context.Background(), nil, encode.Options{})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Empty(t, enc.recorded())
}

func TestService_EncodeQueries_AppliesInstruction(t *testing.T) {
	enc := &fakeEncoder{}
	s := newTestService(t, Config{
		Targets:          []string{"cuda:0"},
		QueryInstruction: "Represent this sentence: ",
	}, enc)

	_, err := s.EncodeQueries(context.Background(), []string{"q1", "q2"}, encode.Options{})
	require.NoError(t, err)

	calls := enc.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{
		"Represent this sentence: q1",
		"Represent this sentence: q2",
	}, calls[0].texts)
}

func TestService_EncodeCorpus_AppliesInstruction(t *testing.T) {
	enc := &fakeEncoder{}
	s := newTestService(t, Config{
		Targets:                  []string{"cuda:0"},
		PassageInstruction:       "passage",
		PassageInstructionFormat: "%s: %s",
	}, enc)

	_, err := s.EncodeCorpus(context.Background(), []string{"doc body"}, encode.Options{})
	require.NoError(t, err)

	calls := enc.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"passage: doc body"}, calls[0].texts)
}

func TestService_NoInstructionLeavesTextsAlone(t *testing.T) {
	enc := &fakeEncoder{}
	s := newTestService(t, Config{Targets: []string{"cuda:0"}}, enc)

	_, err := s.EncodeQueries(context.Background(), []string{"raw"}, encode.Options{})
	require.NoError(t, err)

	calls := enc.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"raw"}, calls[0].texts)
}

func TestService_SingleTargetError(t *testing.T) {
	encodeErr := errors.New("device lost")
	s := newTestService(t, Config{Targets: []string{"cuda:0"}}, &fakeEncoder{err: encodeErr})

	_, err := s.Encode(context.Background(), []string{"a"}, encode.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, encodeErr)
	assert.Contains(t, err.Error(), "cuda:0")
}

func TestService_PoolErrorSurfacesAsWorkerFailure(t *testing.T) {
	encodeErr := errors.New("device lost")
	s := newTestService(t, Config{Targets: []string{"cuda:0", "cuda:1"}}, &fakeEncoder{err: encodeErr})

	_, err := s.Encode(context.Background(), []string{"a", "b", "c"}, encode.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, pool.ErrWorkerFailed)
	assert.ErrorIs(t, err, encodeErr)
}

func TestService_ProbedTargets(t *testing.T) {
	resolver := devices.NewResolver(stubProber{cuda: 2}, nil)
	s, err := NewService(Config{}, &fakeEncoder{}, WithResolver(resolver))
	require.NoError(t, err)

	assert.Equal(t, []string{"cuda:0", "cuda:1"}, s.Targets())
}

func TestService_DefaultOptions(t *testing.T) {
	enc := &fakeEncoder{}
	s := newTestService(t, Config{
		Targets: []string{"cuda:0"},
		Options: encode.Options{BatchSize: 64},
	}, enc)

	_, err := s.Encode(context.Background(), []string{"a"}, encode.Options{})
	require.NoError(t, err)

	calls := enc.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, 64, calls[0].opts.BatchSize, "service default should fill zero batch size")
	assert.Equal(t, encode.DefaultMaxLength, calls[0].opts.MaxLength, "package default should fill the rest")

	// Caller options win over service defaults.
	_, err = s.Encode(context.Background(), []string{"b"}, encode.Options{BatchSize: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, enc.recorded()[1].opts.BatchSize)
}

func TestService_EncodeWithProgress_FastPath(t *testing.T) {
	s := newTestService(t, Config{Targets: []string{"cuda:0"}}, &fakeEncoder{})

	type step struct{ completed, total int }
	var steps []step
	_, err := s.EncodeWithProgress(context.Background(), []string{"a", "b"}, encode.Options{}, func(completed, total int) {
		steps = append(steps, step{completed, total})
	})
	require.NoError(t, err)
	assert.Equal(t, []step{{1, 1}}, steps)
}

func TestService_Warm(t *testing.T) {
	enc := &warmableEncoder{}
	s := newTestService(t, Config{Targets: []string{"cuda:0"}}, enc)

	require.NoError(t, s.Warm(context.Background()))
	assert.Equal(t, int32(1), enc.warms.Load())

	// Encoders without warm-up are fine too.
	plain := newTestService(t, Config{Targets: []string{"cuda:0"}}, &fakeEncoder{})
	require.NoError(t, plain.Warm(context.Background()))
}
