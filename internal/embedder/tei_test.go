package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/encode"
)

// teiTestServer emulates a TEI replica: one vector per input, derived
// from the input's length.
type teiTestServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests int
	lastAuth string
}

func newTEITestServer(t *testing.T) *teiTestServer {
	t.Helper()

	ts := &teiTestServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Truncate)

		ts.mu.Lock()
		ts.requests++
		ts.lastAuth = r.Header.Get("Authorization")
		ts.mu.Unlock()

		vectors := make([][]float32, len(req.Inputs))
		for i, input := range req.Inputs {
			vectors[i] = []float32{float32(len(input))}
		}
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *teiTestServer) requestCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.requests
}

func (ts *teiTestServer) authHeader() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.lastAuth
}

func TestNewTEI_RequiresEndpoints(t *testing.T) {
	_, err := NewTEI(TEIConfig{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewTEI(TEIConfig{Endpoints: map[string]string{"cuda:0": ""}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTEI_EncodeBatch(t *testing.T) {
	srv := newTEITestServer(t)
	tei, err := NewTEI(TEIConfig{
		Model:     "BAAI/bge-small-en-v1.5",
		Endpoints: map[string]string{"cuda:0": srv.URL},
	}, nil)
	require.NoError(t, err)

	out, err := tei.EncodeBatch(context.Background(), []string{"a", "bb", "ccc"}, "cuda:0", encode.Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, out)
	assert.Equal(t, 1, srv.requestCount())
}

func TestTEI_UnknownDevice(t *testing.T) {
	srv := newTEITestServer(t)
	tei, err := NewTEI(TEIConfig{Endpoints: map[string]string{"cuda:0": srv.URL}}, nil)
	require.NoError(t, err)

	_, err = tei.EncodeBatch(context.Background(), []string{"a"}, "cuda:7", encode.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownDevice)
	assert.Zero(t, srv.requestCount())
}

func TestTEI_SubBatching(t *testing.T) {
	srv := newTEITestServer(t)
	tei, err := NewTEI(TEIConfig{Endpoints: map[string]string{"cuda:0": srv.URL}}, nil)
	require.NoError(t, err)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	out, err := tei.EncodeBatch(context.Background(), texts, "cuda:0", encode.Options{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1}, {2}, {3}, {4}, {5}}, out)
	assert.Equal(t, 3, srv.requestCount(), "5 texts at batch size 2 should take 3 requests")
}

func TestTEI_EmptyInput(t *testing.T) {
	srv := newTEITestServer(t)
	tei, err := NewTEI(TEIConfig{Endpoints: map[string]string{"cuda:0": srv.URL}}, nil)
	require.NoError(t, err)

	out, err := tei.EncodeBatch(context.Background(), nil, "cuda:0", encode.Options{})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Zero(t, srv.requestCount())
}

func TestTEI_BearerToken(t *testing.T) {
	srv := newTEITestServer(t)
	tei, err := NewTEI(TEIConfig{
		Endpoints: map[string]string{"cuda:0": srv.URL},
		APIKey:    "sk-test",
	}, nil)
	require.NoError(t, err)

	_, err = tei.EncodeBatch(context.Background(), []string{"a"}, "cuda:0", encode.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", srv.authHeader())
}

func TestTEI_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	tei, err := NewTEI(TEIConfig{Endpoints: map[string]string{"cuda:0": srv.URL}}, nil)
	require.NoError(t, err)

	_, err = tei.EncodeBatch(context.Background(), []string{"a"}, "cuda:0", encode.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncodeFailed)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestTEI_RowCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{{1}})
	}))
	t.Cleanup(srv.Close)

	tei, err := NewTEI(TEIConfig{Endpoints: map[string]string{"cuda:0": srv.URL}}, nil)
	require.NoError(t, err)

	_, err = tei.EncodeBatch(context.Background(), []string{"a", "b"}, "cuda:0", encode.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncodeFailed)
	assert.Contains(t, err.Error(), "vectors")
}

func TestTEI_Dimension(t *testing.T) {
	tei, err := NewTEI(TEIConfig{
		Model:     "BAAI/bge-base-en-v1.5",
		Endpoints: map[string]string{"cpu": "http://localhost:8080"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 768, tei.Dimension())
	require.NoError(t, tei.Close())
}
