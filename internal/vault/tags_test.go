package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "lowercase and drop short and stop tags",
			input:    []string{"Spaced Repetition", "ai", "introduction", "Learning"},
			expected: []string{"spaced repetition", "learning"},
		},
		{
			name:     "order preserving dedup",
			input:    []string{"golang", "Testing", "GOLANG", "testing"},
			expected: []string{"golang", "testing"},
		},
		{
			name:     "collapse internal whitespace",
			input:    []string{"  machine   learning  "},
			expected: []string{"machine learning"},
		},
		{
			name:     "drop tags over three words",
			input:    []string{"too many words in tag", "three word tag"},
			expected: []string{"three word tag"},
		},
		{
			name:     "drop over-length tags",
			input:    []string{"a tag that is far too long to be useful anywhere"},
			expected: []string{},
		},
		{
			name:     "empty input",
			input:    nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTags(tt.input))
		})
	}
}
