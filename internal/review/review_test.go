package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"none", "plain text", nil},
		{"lowercased and deduped", "#Sales call went well #sales #hiring", []string{"sales", "hiring"}},
		{"underscore", "#cash_flow is tight", []string{"cash_flow"}},
		{"bare hash ignored", "# and #", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractTags(tc.in))
		})
	}
}

func TestExtractTags_Cap(t *testing.T) {
	in := ""
	for i := 0; i < 30; i++ {
		in += " #t" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	assert.Len(t, ExtractTags(in), maxTags)
}

func TestReflectionText(t *testing.T) {
	got := reflectionText(CreateInput{
		Wins:      "  closed the pilot ",
		Struggles: "",
		Notes:     "need a #pricing page",
	})
	assert.Equal(t, "Wins: closed the pilot\n\nNotes: need a #pricing page", got)

	assert.Empty(t, reflectionText(CreateInput{Wins: "  ", Notes: "\n"}))
}
