package vectorstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCollectionName(t *testing.T) {
	valid := []string{
		"docs",
		"vectord_default",
		"a",
		"collection_123",
		strings.Repeat("x", 64),
	}
	for _, name := range valid {
		assert.NoError(t, ValidateCollectionName(name), "name %q", name)
	}

	invalid := []string{
		"",
		"Has-Dash",
		"UPPERCASE",
		"with space",
		"dotted.name",
		"unicode_é",
		strings.Repeat("x", 65),
	}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateCollectionName(name), ErrInvalidCollectionName, "name %q", name)
	}
}
