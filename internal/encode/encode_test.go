package encode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsWithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "zero value gets defaults",
			in:   Options{},
			want: Options{BatchSize: 256, MaxLength: 512},
		},
		{
			name: "explicit values kept",
			in:   Options{BatchSize: 64, MaxLength: 128},
			want: Options{BatchSize: 64, MaxLength: 128},
		},
		{
			name: "partial fill",
			in:   Options{BatchSize: 32},
			want: Options{BatchSize: 32, MaxLength: 512},
		},
		{
			name: "negative treated as unset",
			in:   Options{BatchSize: -1, MaxLength: -1},
			want: Options{BatchSize: 256, MaxLength: 512},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.WithDefaults())
		})
	}
}

func TestFuncAdapter(t *testing.T) {
	var gotDevice string
	f := Func(func(_ context.Context, texts []string, device string, _ Options) ([][]float32, error) {
		gotDevice = device
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{float32(i)}
		}
		return out, nil
	})

	var enc Encoder = f
	vecs, err := enc.EncodeBatch(context.Background(), []string{"a", "b"}, "cpu", Options{})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, "cpu", gotDevice)
}
