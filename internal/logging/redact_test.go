package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/vectord/internal/config"
)

// testBuffer is a minimal byte sink for encoder output.
type testBuffer struct {
	data []byte
}

func (b *testBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *testBuffer) String() string { return string(b.data) }

func newRedactingTestLogger(t *testing.T, cfg RedactionConfig) (*Logger, *testBuffer) {
	t.Helper()

	enc, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.NoError(t, err)

	buf := &testBuffer{}
	core := zapcore.NewCore(enc, zapcore.AddSync(buf), zapcore.DebugLevel)

	return &Logger{zap: zap.New(core), config: NewDefaultConfig()}, buf
}

func TestRedactingEncoder_FieldNames(t *testing.T) {
	logger, buf := newRedactingTestLogger(t, NewDefaultConfig().Redaction)

	logger.Info(context.Background(), "auth",
		zap.String("api_key", "sk-123456"),
		zap.String("model", "bge-small"),
	)

	out := buf.String()
	assert.NotContains(t, out, "sk-123456")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "bge-small")
}

func TestRedactingEncoder_Patterns(t *testing.T) {
	logger, buf := newRedactingTestLogger(t, NewDefaultConfig().Redaction)

	logger.Info(context.Background(), "request",
		zap.String("header", "Bearer abc.def.ghi"),
	)

	out := buf.String()
	assert.NotContains(t, out, "abc.def.ghi")
	assert.Contains(t, out, "[REDACTED:pattern]")
}

func TestRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{
		Enabled:  true,
		Patterns: []string{"[unclosed"},
	})
	require.Error(t, err)
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	logger, buf := newRedactingTestLogger(t, RedactionConfig{Enabled: false})

	logger.Info(context.Background(), "auth", zap.String("api_key", "sk-visible"))

	assert.Contains(t, buf.String(), "sk-visible")
}

func TestSecretField(t *testing.T) {
	tl := NewTestLogger()

	tl.Info(context.Background(), "configured",
		Secret("api_key", config.Secret("sk-abcdef")),
	)

	logs := tl.All()
	require.Len(t, logs, 1)

	entry := logs[0].ContextMap()
	nested, ok := entry["api_key"].(map[string]interface{})
	require.True(t, ok, "api_key field should be an object")
	assert.Equal(t, "[REDACTED:9]", nested["api_key"])
}

func TestRedactedString(t *testing.T) {
	f := RedactedString("authorization", "Bearer 12345")
	assert.Equal(t, "[REDACTED:12]", f.String)
}
