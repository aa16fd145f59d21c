// Package analysis runs the hourly per-user analysis batch and the periodic
// digest pass.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wheel/internal/localtime"
	"wheel/internal/profile"
)

// Detail statuses.
const (
	StatusSuccess                = "success"
	StatusError                  = "error"
	StatusSkipped                = "skipped"
	StatusSkippedAlreadyAnalyzed = "skipped_already_analyzed"
	StatusSkippedNotInWindow     = "skipped_not_in_window"
)

// Input is what the analyzer is told about the user.
type Input struct {
	Tier               string
	ProFeaturesEnabled bool
}

type Finding struct {
	Text       string `json:"text"`
	Type       string `json:"type"`
	DataSource string `json:"dataSource"`
}

type Output struct {
	Insights []Finding
}

// Analyzer produces insights for one user. A nil Output with a nil error
// means there was nothing to analyze.
type Analyzer interface {
	Analyze(ctx context.Context, userID uint64, in Input) (*Output, error)
}

// DigestGenerator produces reflection prompts for a user's period [from,to).
type DigestGenerator interface {
	Generate(ctx context.Context, p profile.UserProfile, kind string, from, to time.Time) ([]string, error)
}

type Store interface {
	ListProfiles(ctx context.Context) ([]profile.UserProfile, error)
	GetProfile(ctx context.Context, userID uint64) (profile.UserProfile, error)
	// CommitAnalysis stores insights and sets last_analyzed_at, but only if
	// the user has not been analyzed since dayStart. It reports whether the
	// commit happened.
	CommitAnalysis(ctx context.Context, userID uint64, dayStart, analyzedAt time.Time, insights []Insight) (bool, error)
	AppendLog(ctx context.Context, e *LogEntry) error
	// SaveDigest inserts d unless the same period already exists.
	SaveDigest(ctx context.Context, d *DigestPrompt) (bool, error)
}

type Config struct {
	WindowStart     int
	WindowEnd       int
	DigestHour      int
	WeeklyDigestDay time.Weekday
}

func DefaultConfig() Config {
	return Config{
		WindowStart:     localtime.DefaultWindowStart,
		WindowEnd:       localtime.DefaultWindowEnd,
		DigestHour:      18,
		WeeklyDigestDay: time.Sunday,
	}
}

type Options struct {
	// Manual skips the local-window check.
	Manual bool
	// UserID limits the run to one user when set.
	UserID *uint64
}

type Detail struct {
	UserID    uint64 `json:"userId"`
	Status    string `json:"status"`
	LocalHour int    `json:"localHour"`
	Insights  int    `json:"insights"`
	Error     string `json:"error,omitempty"`
}

type DigestResult struct {
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
	Errors  int `json:"errors"`
}

// Result is the aggregate of one run. Skipped counts every skip category;
// the two named categories are also counted separately.
type Result struct {
	TotalUsers             int          `json:"totalUsers"`
	Processed              int          `json:"processed"`
	Skipped                int          `json:"skipped"`
	SkippedAlreadyAnalyzed int          `json:"skippedAlreadyAnalyzed"`
	SkippedNotInWindow     int          `json:"skippedNotInWindow"`
	Errors                 int          `json:"errors"`
	InsightsGenerated      int          `json:"insightsGenerated"`
	Details                []Detail     `json:"details"`
	Digests                DigestResult `json:"digests"`
}

func (r *Result) add(d Detail) {
	r.Details = append(r.Details, d)
	switch d.Status {
	case StatusSuccess:
		r.Processed++
		r.InsightsGenerated += d.Insights
	case StatusError:
		r.Errors++
	case StatusSkippedAlreadyAnalyzed:
		r.Skipped++
		r.SkippedAlreadyAnalyzed++
	case StatusSkippedNotInWindow:
		r.Skipped++
		r.SkippedNotInWindow++
	case StatusSkipped:
		r.Skipped++
	}
}

type Scheduler struct {
	store    Store
	analyzer Analyzer
	digests  DigestGenerator
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
}

// NewScheduler wires a scheduler. digests may be nil to disable the digest
// pass.
func NewScheduler(store Store, analyzer Analyzer, digests DigestGenerator, cfg Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		analyzer: analyzer,
		digests:  digests,
		cfg:      cfg,
		log:      log.With().Str("component", "analysis_scheduler").Logger(),
		now:      time.Now,
	}
}

// Now returns the scheduler's clock reading in UTC.
func (s *Scheduler) Now() time.Time { return s.now().UTC() }

// Run evaluates every profile once. Per-user failures land in the result;
// only a failure to load profiles is returned as an error.
func (s *Scheduler) Run(ctx context.Context, opts Options) (Result, error) {
	now := s.Now()
	dayStart := localtime.StartOfUTCDay(now)
	log := s.log.With().Str("run_id", uuid.NewString()).Bool("manual", opts.Manual).Logger()

	profiles, err := s.loadProfiles(ctx, opts)
	if err != nil {
		return Result{}, fmt.Errorf("list profiles: %w", err)
	}

	res := Result{TotalUsers: len(profiles), Details: make([]Detail, 0, len(profiles))}
	for _, p := range profiles {
		if ctx.Err() != nil {
			break
		}
		d := s.runUser(ctx, log, p, now, dayStart, opts.Manual)
		res.add(d)
	}

	if !opts.Manual && s.digests != nil {
		res.Digests = s.runDigests(ctx, log, profiles, now)
	}

	log.Info().
		Int("total", res.TotalUsers).
		Int("processed", res.Processed).
		Int("skipped", res.Skipped).
		Int("errors", res.Errors).
		Int("insights", res.InsightsGenerated).
		Msg("analysis run finished")
	return res, ctx.Err()
}

func (s *Scheduler) loadProfiles(ctx context.Context, opts Options) ([]profile.UserProfile, error) {
	if opts.UserID != nil {
		p, err := s.store.GetProfile(ctx, *opts.UserID)
		if err != nil {
			return nil, err
		}
		return []profile.UserProfile{p}, nil
	}
	return s.store.ListProfiles(ctx)
}

func (s *Scheduler) runUser(ctx context.Context, log zerolog.Logger, p profile.UserProfile, now, dayStart time.Time, manual bool) Detail {
	hour := localtime.LocalHour(now, p.TimezoneOffsetMinutes)
	d := Detail{UserID: p.ID, LocalHour: hour}

	if p.LastAnalyzedAt != nil && !p.LastAnalyzedAt.Before(dayStart) {
		d.Status = StatusSkippedAlreadyAnalyzed
		return d
	}
	if !manual && !localtime.InWindow(hour, s.cfg.WindowStart, s.cfg.WindowEnd) {
		d.Status = StatusSkippedNotInWindow
		return d
	}

	start := time.Now()
	out, err := s.analyze(ctx, p)
	if err != nil {
		d.Status = StatusError
		d.Error = err.Error()
		log.Error().Err(err).Uint64("user_id", p.ID).Msg("user analysis failed")
		s.appendLog(ctx, log, p.ID, dayStart, LogError, 0, &d.Error, time.Since(start))
		return d
	}
	if out == nil {
		d.Status = StatusSkipped
		return d
	}

	rows := make([]Insight, 0, len(out.Insights))
	for _, f := range out.Insights {
		rows = append(rows, Insight{
			UserID:       p.ID,
			AnalysisDate: dayStart,
			Text:         f.Text,
			Type:         f.Type,
			DataSource:   f.DataSource,
		})
	}

	committed, err := s.store.CommitAnalysis(ctx, p.ID, dayStart, now, rows)
	if err != nil {
		d.Status = StatusError
		d.Error = fmt.Sprintf("commit analysis: %v", err)
		log.Error().Err(err).Uint64("user_id", p.ID).Msg("saving analysis failed")
		s.appendLog(ctx, log, p.ID, dayStart, LogError, 0, &d.Error, time.Since(start))
		return d
	}
	if !committed {
		// another invocation analyzed this user first; the analyzer output is discarded
		d.Status = StatusSkippedAlreadyAnalyzed
		msg := "discarded: already analyzed by a concurrent run"
		s.appendLog(ctx, log, p.ID, dayStart, LogError, 0, &msg, time.Since(start))
		return d
	}

	d.Status = StatusSuccess
	d.Insights = len(rows)
	s.appendLog(ctx, log, p.ID, dayStart, LogSuccess, len(rows), nil, time.Since(start))
	return d
}

func (s *Scheduler) analyze(ctx context.Context, p profile.UserProfile) (out *Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return s.analyzer.Analyze(ctx, p.ID, Input{Tier: p.Tier, ProFeaturesEnabled: p.ProFeaturesEnabled})
}

func (s *Scheduler) appendLog(ctx context.Context, log zerolog.Logger, userID uint64, day time.Time, status string, n int, msg *string, took time.Duration) {
	e := &LogEntry{
		UserID:            userID,
		AnalysisDate:      day,
		Status:            status,
		InsightsGenerated: n,
		ErrorMessage:      msg,
		ProcessingTimeMs:  took.Milliseconds(),
	}
	if err := s.store.AppendLog(ctx, e); err != nil {
		log.Warn().Err(err).Uint64("user_id", userID).Msg("writing analysis log failed")
	}
}

func panicError(r any) error {
	return fmt.Errorf("panic: %v", r)
}
