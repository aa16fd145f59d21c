package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"wheel/internal/patterns"
	"wheel/internal/profile"
)

const (
	lookback        = 14 * 24 * time.Hour
	maxPatternsRead = 500
	freeInsightCap  = 1
	proInsightCap   = 5
	minRecurring    = 2
	minWinsStreak   = 3
)

// PatternSource reads a user's extracted patterns.
type PatternSource interface {
	Recent(ctx context.Context, userID uint64, since time.Time, limit int) ([]patterns.Pattern, error)
}

// PatternAnalyzer derives insights from recently extracted patterns.
type PatternAnalyzer struct {
	source PatternSource
	now    func() time.Time
}

func NewPatternAnalyzer(source PatternSource) *PatternAnalyzer {
	return &PatternAnalyzer{source: source, now: time.Now}
}

type group struct {
	typ   string
	text  string
	count int
}

// groupPatterns counts patterns per (type, case-folded text), most frequent
// first, ties broken by text.
func groupPatterns(rows []patterns.Pattern) []group {
	idx := map[string]int{}
	var out []group
	for _, r := range rows {
		key := r.PatternType + "\x00" + strings.ToLower(strings.TrimSpace(r.PatternText))
		if i, ok := idx[key]; ok {
			out[i].count++
			continue
		}
		idx[key] = len(out)
		out = append(out, group{typ: r.PatternType, text: strings.TrimSpace(r.PatternText), count: 1})
	}
	sort.SliceStable(out, func(i, k int) bool {
		if out[i].count != out[k].count {
			return out[i].count > out[k].count
		}
		return strings.ToLower(out[i].text) < strings.ToLower(out[k].text)
	})
	return out
}

func (a *PatternAnalyzer) Analyze(ctx context.Context, userID uint64, in Input) (*Output, error) {
	rows, err := a.source.Recent(ctx, userID, a.now().Add(-lookback), maxPatternsRead)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	groups := groupPatterns(rows)
	var findings []Finding

	for _, g := range groups {
		if g.count < minRecurring {
			break
		}
		if g.typ == patterns.TypeStruggle || g.typ == patterns.TypePainPoint {
			findings = append(findings, Finding{
				Text:       fmt.Sprintf("%q has come up %d times in the last two weeks. It may be worth a focused block on your next daily plan.", g.text, g.count),
				Type:       "warning",
				DataSource: "patterns",
			})
		}
	}

	wins := 0
	for _, r := range rows {
		if r.PatternType == patterns.TypeWin {
			wins++
		}
	}
	if wins >= minWinsStreak {
		findings = append(findings, Finding{
			Text:       fmt.Sprintf("You logged %d wins in the last two weeks. Keep the momentum going.", wins),
			Type:       "celebration",
			DataSource: "patterns",
		})
	}

	for _, g := range groups {
		if g.typ == patterns.TypeTheme || g.typ == patterns.TypeGoal {
			findings = append(findings, Finding{
				Text:       fmt.Sprintf("Your reflections keep returning to %q.", g.text),
				Type:       "focus",
				DataSource: "patterns",
			})
			break
		}
	}

	limit := freeInsightCap
	if (profile.UserProfile{Tier: in.Tier, ProFeaturesEnabled: in.ProFeaturesEnabled}).CanAccess(profile.FeatureDeepInsights) {
		limit = proInsightCap
	}
	if len(findings) > limit {
		findings = findings[:limit]
	}
	return &Output{Insights: findings}, nil
}

// PatternDigester builds weekly and monthly reflection prompts from the
// period's patterns.
type PatternDigester struct {
	source PatternSource
}

func NewPatternDigester(source PatternSource) *PatternDigester {
	return &PatternDigester{source: source}
}

func (d *PatternDigester) Generate(ctx context.Context, p profile.UserProfile, kind string, from, to time.Time) ([]string, error) {
	rows, err := d.source.Recent(ctx, p.ID, from, maxPatternsRead)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	var inPeriod []patterns.Pattern
	for _, r := range rows {
		if r.DetectedAt.Before(to) {
			inPeriod = append(inPeriod, r)
		}
	}

	period := "week"
	if kind == DigestMonthly {
		period = "month"
	}

	prompts := []string{
		fmt.Sprintf("What was the single biggest needle mover this %s?", period),
	}
	seen := map[string]bool{}
	for _, g := range groupPatterns(inPeriod) {
		if seen[g.typ] {
			continue
		}
		switch g.typ {
		case patterns.TypeStruggle, patterns.TypePainPoint:
			prompts = append(prompts, fmt.Sprintf("%q kept showing up as a struggle. What is one experiment that would make it smaller next %s?", g.text, period))
		case patterns.TypeWin:
			prompts = append(prompts, fmt.Sprintf("You counted %q as a win. What made it work and how do you repeat it?", g.text))
		case patterns.TypeGoal:
			prompts = append(prompts, fmt.Sprintf("How far did you move toward %q this %s?", g.text, period))
		default:
			continue
		}
		seen[g.typ] = true
	}
	if len(prompts) == 1 {
		prompts = append(prompts, fmt.Sprintf("What would you do differently if you could rerun this %s?", period))
	}
	return prompts, nil
}
