package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSuggestion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		min     int64
		max     int64
		reason  string
		wantErr bool
	}{
		{"strict", "RANGE: 20-80\nREASON: concrete usability issue", 20, 80, "concrete usability issue", false},
		{"lowercase and spaces", "range : 5 - 20\nreason: typo", 5, 20, "typo", false},
		{"to separator", "RANGE: 80 to 200", 80, 200, "", false},
		{"reversed", "RANGE: 50-10", 10, 50, "", false},
		{"loose", "I would give 30-60 points", 30, 60, "", false},
		{"no match", "worth a lot", 0, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSuggestion(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrParseFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.min, got.Min)
			assert.Equal(t, tt.max, got.Max)
			assert.Equal(t, tt.reason, got.Reasoning)
		})
	}
}
