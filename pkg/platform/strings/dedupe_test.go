package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil stays nil",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty stays empty",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  materials  ", "general "},
			expected: []string{"materials", "general"},
		},
		{
			name:     "drops duplicates, keeps order",
			input:    []string{"materials", "general", "materials", "disposal", "general"},
			expected: []string{"materials", "general", "disposal"},
		},
		{
			name:     "drops blank entries",
			input:    []string{"materials", "", "  ", "general"},
			expected: []string{"materials", "general"},
		},
		{
			name:     "case is significant",
			input:    []string{"Materials", "materials"},
			expected: []string{"Materials", "materials"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
