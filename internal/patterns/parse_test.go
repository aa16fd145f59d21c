package patterns

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantOK bool
		want   []Item
	}{
		{
			name:   "array wrapped in prose",
			raw:    `Here is the result: [{"type":"struggle","text":"pricing"}] Thanks!`,
			wantOK: true,
			want:   []Item{{Type: TypeStruggle, Text: "pricing"}},
		},
		{
			name:   "bare array",
			raw:    `[{"type":"win","text":"closed first customer"},{"type":"goal","text":"hire a CTO"}]`,
			wantOK: true,
			want: []Item{
				{Type: TypeWin, Text: "closed first customer"},
				{Type: TypeGoal, Text: "hire a CTO"},
			},
		},
		{
			name:   "not json",
			raw:    "not json at all",
			wantOK: false,
		},
		{
			name:   "empty",
			raw:    "   ",
			wantOK: false,
		},
		{
			name:   "unknown type defaults to theme",
			raw:    `[{"type":"unknown_type","text":"foo"}]`,
			wantOK: true,
			want:   []Item{{Type: TypeTheme, Text: "foo"}},
		},
		{
			name:   "missing type defaults to theme",
			raw:    `[{"text":"foo"}]`,
			wantOK: true,
			want:   []Item{{Type: TypeTheme, Text: "foo"}},
		},
		{
			name:   "blank text dropped",
			raw:    `[{"type":"win","text":"   "},{"type":"pain_point","text":"churn"}]`,
			wantOK: true,
			want:   []Item{{Type: TypePainPoint, Text: "churn"}},
		},
		{
			name:   "missing and non-string text dropped",
			raw:    `[{"type":"win"},{"type":"win","text":12},"loose string"]`,
			wantOK: true,
			want:   []Item{},
		},
		{
			name:   "type is normalised",
			raw:    `[{"type":" Struggle ","text":" hiring "}]`,
			wantOK: true,
			want:   []Item{{Type: TypeStruggle, Text: "hiring"}},
		},
		{
			name:   "markdown fenced",
			raw:    "```json\n[{\"type\":\"theme\",\"text\":\"focus\"}]\n```",
			wantOK: true,
			want:   []Item{{Type: TypeTheme, Text: "focus"}},
		},
		{
			name:   "object instead of array",
			raw:    `{"type":"win","text":"x"}`,
			wantOK: false,
		},
		{
			name:   "empty array",
			raw:    `[]`,
			wantOK: true,
			want:   []Item{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			assert.Equal(t, tt.wantOK, got.OK)
			if !tt.wantOK {
				assert.Empty(t, got.Items)
				return
			}
			assert.Equal(t, tt.want, got.Items)
		})
	}
}

func TestParse_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("a", maxPatternText+50)
	got := Parse(`[{"type":"theme","text":"` + long + `"}]`)
	assert.True(t, got.OK)
	assert.Len(t, got.Items, 1)
	assert.Len(t, got.Items[0].Text, maxPatternText)
}

func TestNewJob(t *testing.T) {
	_, ok := NewJob(1, "reviews", "9", "")
	assert.False(t, ok)
	_, ok = NewJob(1, "reviews", "9", "   \n\t")
	assert.False(t, ok)

	j, ok := NewJob(1, "reviews", "9", "  shipped v2  ")
	assert.True(t, ok)
	assert.Equal(t, "shipped v2", j.Content)
	assert.Equal(t, StatusPending, j.Status)
	assert.False(t, j.Processed())

	j, ok = NewJob(1, "reviews", "9", strings.Repeat("é", MaxStoredContent+10))
	assert.True(t, ok)
	assert.Equal(t, MaxStoredContent, len([]rune(j.Content)))
}
