package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetailedInstruct(t *testing.T) {
	tests := []struct {
		name        string
		format      string
		instruction string
		text        string
		want        string
	}{
		{
			name:        "default format prepends",
			format:      "",
			instruction: "Represent this sentence: ",
			text:        "hello",
			want:        "Represent this sentence: hello",
		},
		{
			name:        "explicit plain format",
			format:      "%s%s",
			instruction: "query: ",
			text:        "hello",
			want:        "query: hello",
		},
		{
			name:        "templated format",
			format:      "Instruct: %s\nQuery: %s",
			instruction: "Given a query, retrieve relevant passages",
			text:        "what is a monad",
			want:        "Instruct: Given a query, retrieve relevant passages\nQuery: what is a monad",
		},
		{
			name:        "empty instruction still renders",
			format:      "%s%s",
			instruction: "",
			text:        "hello",
			want:        "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetailedInstruct(tt.format, tt.instruction, tt.text))
		})
	}
}

func TestApplyInstruction(t *testing.T) {
	t.Run("empty instruction returns input unchanged", func(t *testing.T) {
		in := []string{"a", "b"}
		out := applyInstruction("%s%s", "", in)
		assert.Equal(t, in, out)
	})

	t.Run("wraps every text", func(t *testing.T) {
		out := applyInstruction("", "p: ", []string{"x", "y"})
		assert.Equal(t, []string{"p: x", "p: y"}, out)
	})

	t.Run("nil input", func(t *testing.T) {
		assert.Empty(t, applyInstruction("", "p: ", nil))
	})
}
