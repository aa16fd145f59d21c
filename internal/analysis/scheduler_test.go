package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wheel/internal/profile"
)

type fakeStore struct {
	mu        sync.Mutex
	profiles  []profile.UserProfile
	listErr   error
	commitErr map[uint64]error
	lostRace  map[uint64]bool
	committed map[uint64][]Insight
	analyzed  map[uint64]time.Time
	logs      []LogEntry
	digests   []DigestPrompt
}

func newFakeStore(profiles ...profile.UserProfile) *fakeStore {
	return &fakeStore{
		profiles:  profiles,
		commitErr: map[uint64]error{},
		lostRace:  map[uint64]bool{},
		committed: map[uint64][]Insight{},
		analyzed:  map[uint64]time.Time{},
	}
}

func (f *fakeStore) ListProfiles(context.Context) ([]profile.UserProfile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.profiles, nil
}

func (f *fakeStore) GetProfile(_ context.Context, id uint64) (profile.UserProfile, error) {
	for _, p := range f.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return profile.UserProfile{}, profile.ErrNotFound
}

func (f *fakeStore) CommitAnalysis(_ context.Context, id uint64, _, at time.Time, insights []Insight) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.commitErr[id]; err != nil {
		return false, err
	}
	if f.lostRace[id] {
		return false, nil
	}
	f.committed[id] = insights
	f.analyzed[id] = at
	return true, nil
}

func (f *fakeStore) AppendLog(_ context.Context, e *LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *e)
	return nil
}

func (f *fakeStore) SaveDigest(_ context.Context, d *DigestPrompt) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.digests {
		if x.UserID == d.UserID && x.Kind == d.Kind && x.PeriodStart.Equal(d.PeriodStart) {
			return false, nil
		}
	}
	f.digests = append(f.digests, *d)
	return true, nil
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls []uint64
	fn    func(userID uint64) (*Output, error)
}

func (a *fakeAnalyzer) Analyze(_ context.Context, userID uint64, _ Input) (*Output, error) {
	a.mu.Lock()
	a.calls = append(a.calls, userID)
	a.mu.Unlock()
	if a.fn == nil {
		return &Output{Insights: []Finding{{Text: "insight", Type: "focus", DataSource: "test"}}}, nil
	}
	return a.fn(userID)
}

type fakeDigester struct {
	calls []digestCall
	err   error
}

type digestCall struct {
	userID   uint64
	kind     string
	from, to time.Time
}

func (d *fakeDigester) Generate(_ context.Context, p profile.UserProfile, kind string, from, to time.Time) ([]string, error) {
	d.calls = append(d.calls, digestCall{p.ID, kind, from, to})
	if d.err != nil {
		return nil, d.err
	}
	return []string{"q1", "q2"}, nil
}

// tuesday 03:00 UTC
var testNow = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

func newTestScheduler(store Store, a Analyzer, d DigestGenerator, now time.Time) *Scheduler {
	s := NewScheduler(store, a, d, DefaultConfig(), zerolog.Nop())
	s.now = func() time.Time { return now }
	return s
}

func ptrTime(t time.Time) *time.Time { return &t }

func detailFor(t *testing.T, res Result, id uint64) Detail {
	t.Helper()
	for _, d := range res.Details {
		if d.UserID == id {
			return d
		}
	}
	t.Fatalf("no detail for user %d", id)
	return Detail{}
}

func TestRun_SkipsAlreadyAnalyzedToday(t *testing.T) {
	store := newFakeStore(profile.UserProfile{ID: 1, LastAnalyzedAt: ptrTime(testNow.Add(-2 * time.Hour))})
	a := &fakeAnalyzer{}
	s := newTestScheduler(store, a, nil, testNow)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusSkippedAlreadyAnalyzed, detailFor(t, res, 1).Status)
	assert.Equal(t, 1, res.SkippedAlreadyAnalyzed)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, a.calls)
}

func TestRun_AnalyzedYesterdayIsEligible(t *testing.T) {
	yesterday := time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)
	store := newFakeStore(profile.UserProfile{ID: 1, LastAnalyzedAt: &yesterday})
	a := &fakeAnalyzer{}
	s := newTestScheduler(store, a, nil, testNow)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, detailFor(t, res, 1).Status)
	assert.Equal(t, []uint64{1}, a.calls)
}

func TestRun_OutsideWindow(t *testing.T) {
	// 03:00Z + 3h = 06:00 local
	store := newFakeStore(profile.UserProfile{ID: 1, TimezoneOffsetMinutes: 180})
	a := &fakeAnalyzer{}
	s := newTestScheduler(store, a, nil, testNow)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)

	d := detailFor(t, res, 1)
	assert.Equal(t, StatusSkippedNotInWindow, d.Status)
	assert.Equal(t, 6, d.LocalHour)
	assert.Equal(t, 1, res.SkippedNotInWindow)
	assert.Empty(t, a.calls)
}

func TestRun_ManualBypassesWindow(t *testing.T) {
	store := newFakeStore(
		profile.UserProfile{ID: 1, TimezoneOffsetMinutes: 180},
		profile.UserProfile{ID: 2, TimezoneOffsetMinutes: -600},
	)
	a := &fakeAnalyzer{}
	s := newTestScheduler(store, a, nil, testNow)

	res, err := s.Run(context.Background(), Options{Manual: true})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 0, res.SkippedNotInWindow)
	assert.Equal(t, []uint64{1, 2}, a.calls)
}

func TestRun_ManualStillSkipsAlreadyAnalyzedAndNoData(t *testing.T) {
	store := newFakeStore(
		profile.UserProfile{ID: 1, LastAnalyzedAt: ptrTime(testNow.Add(-time.Minute))},
		profile.UserProfile{ID: 2},
	)
	a := &fakeAnalyzer{fn: func(uint64) (*Output, error) { return nil, nil }}
	s := newTestScheduler(store, a, nil, testNow)

	res, err := s.Run(context.Background(), Options{Manual: true})
	require.NoError(t, err)

	assert.Equal(t, StatusSkippedAlreadyAnalyzed, detailFor(t, res, 1).Status)
	assert.Equal(t, StatusSkipped, detailFor(t, res, 2).Status)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, []uint64{2}, a.calls)
	assert.Empty(t, store.committed)
}

func TestRun_FailureIsIsolated(t *testing.T) {
	store := newFakeStore(
		profile.UserProfile{ID: 1},
		profile.UserProfile{ID: 2},
		profile.UserProfile{ID: 3},
	)
	a := &fakeAnalyzer{fn: func(id uint64) (*Output, error) {
		if id == 2 {
			return nil, errors.New("model exploded")
		}
		return &Output{Insights: []Finding{{Text: "a"}, {Text: "b"}}}, nil
	}}
	s := newTestScheduler(store, a, nil, testNow)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2, 3}, a.calls)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 4, res.InsightsGenerated)

	errorDetails := 0
	for _, d := range res.Details {
		if d.Status == StatusError {
			errorDetails++
			assert.Equal(t, uint64(2), d.UserID)
			assert.Contains(t, d.Error, "model exploded")
		}
	}
	assert.Equal(t, 1, errorDetails)

	require.Len(t, store.logs, 3)
	statuses := map[uint64]string{}
	for _, l := range store.logs {
		statuses[l.UserID] = l.Status
	}
	assert.Equal(t, map[uint64]string{1: LogSuccess, 2: LogError, 3: LogSuccess}, statuses)
}

func TestRun_PanicIsIsolated(t *testing.T) {
	store := newFakeStore(profile.UserProfile{ID: 1}, profile.UserProfile{ID: 2})
	a := &fakeAnalyzer{fn: func(id uint64) (*Output, error) {
		if id == 1 {
			panic("nil map")
		}
		return &Output{}, nil
	}}
	s := newTestScheduler(store, a, nil, testNow)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusError, detailFor(t, res, 1).Status)
	assert.Equal(t, StatusSuccess, detailFor(t, res, 2).Status)
}

func TestRun_CommitsInsightsAndTimestamp(t *testing.T) {
	store := newFakeStore(profile.UserProfile{ID: 9})
	a := &fakeAnalyzer{fn: func(uint64) (*Output, error) {
		return &Output{Insights: []Finding{{Text: "pricing keeps coming up", Type: "warning", DataSource: "patterns"}}}, nil
	}}
	s := newTestScheduler(store, a, nil, testNow)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.InsightsGenerated)

	rows := store.committed[9]
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(9), rows[0].UserID)
	assert.Equal(t, "warning", rows[0].Type)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), rows[0].AnalysisDate)
	assert.Equal(t, testNow, store.analyzed[9])
}

func TestRun_LostRaceCountsAsAlreadyAnalyzed(t *testing.T) {
	store := newFakeStore(profile.UserProfile{ID: 1})
	store.lostRace[1] = true
	s := newTestScheduler(store, &fakeAnalyzer{}, nil, testNow)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusSkippedAlreadyAnalyzed, detailFor(t, res, 1).Status)
	assert.Equal(t, 0, res.Processed)
	require.Len(t, store.logs, 1)
	assert.Equal(t, LogError, store.logs[0].Status)
	assert.Equal(t, 0, store.logs[0].InsightsGenerated)
	require.NotNil(t, store.logs[0].ErrorMessage)
	assert.Contains(t, *store.logs[0].ErrorMessage, "concurrent run")
	assert.NotContains(t, store.committed, uint64(1))
}

func TestRun_CommitErrorIsUserError(t *testing.T) {
	store := newFakeStore(profile.UserProfile{ID: 1}, profile.UserProfile{ID: 2})
	store.commitErr[1] = errors.New("deadlock")
	s := newTestScheduler(store, &fakeAnalyzer{}, nil, testNow)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 1, res.Processed)
	assert.Contains(t, detailFor(t, res, 1).Error, "deadlock")
}

func TestRun_ListFailureIsTopLevel(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")
	s := newTestScheduler(store, &fakeAnalyzer{}, nil, testNow)

	_, err := s.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRun_SingleUser(t *testing.T) {
	store := newFakeStore(profile.UserProfile{ID: 1}, profile.UserProfile{ID: 2})
	a := &fakeAnalyzer{}
	s := newTestScheduler(store, a, nil, testNow)

	uid := uint64(2)
	res, err := s.Run(context.Background(), Options{Manual: true, UserID: &uid})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalUsers)
	assert.Equal(t, []uint64{2}, a.calls)

	missing := uint64(99)
	_, err = s.Run(context.Background(), Options{Manual: true, UserID: &missing})
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestRun_AggregateCounts(t *testing.T) {
	store := newFakeStore(
		profile.UserProfile{ID: 1},
		profile.UserProfile{ID: 2, TimezoneOffsetMinutes: 600},
		profile.UserProfile{ID: 3, LastAnalyzedAt: ptrTime(testNow)},
		profile.UserProfile{ID: 4},
		profile.UserProfile{ID: 5},
	)
	a := &fakeAnalyzer{fn: func(id uint64) (*Output, error) {
		switch id {
		case 4:
			return nil, nil
		case 5:
			return nil, fmt.Errorf("boom")
		}
		return &Output{Insights: []Finding{{Text: "x"}}}, nil
	}}
	s := newTestScheduler(store, a, nil, testNow)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 5, res.TotalUsers)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, 1, res.SkippedAlreadyAnalyzed)
	assert.Equal(t, 1, res.SkippedNotInWindow)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 1, res.InsightsGenerated)
	assert.Len(t, res.Details, 5)
}

func TestRun_WeeklyDigest(t *testing.T) {
	sunday := time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC)
	store := newFakeStore(
		profile.UserProfile{ID: 1, Tier: profile.TierPro},
		profile.UserProfile{ID: 2, Tier: profile.TierFree},
		profile.UserProfile{ID: 3, Tier: profile.TierFree, ProFeaturesEnabled: true},
		profile.UserProfile{ID: 4, Tier: profile.TierPro, TimezoneOffsetMinutes: 60},
	)
	d := &fakeDigester{}
	s := newTestScheduler(store, &fakeAnalyzer{}, d, sunday)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Digests.Weekly)
	assert.Equal(t, 0, res.Digests.Monthly)
	require.Len(t, store.digests, 2)
	assert.Equal(t, uint64(1), store.digests[0].UserID)
	assert.Equal(t, uint64(3), store.digests[1].UserID)
	assert.Equal(t, DigestWeekly, store.digests[0].Kind)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), store.digests[0].PeriodStart)
	assert.Equal(t, []string{"q1", "q2"}, []string(store.digests[0].Prompts))

	// analysis pass ran independently: 18:00 is outside the window
	assert.Equal(t, 4, res.SkippedNotInWindow)

	// a retried trigger in the same hour does not duplicate digests
	res, err = s.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Digests.Weekly)
	assert.Len(t, store.digests, 2)
}

func TestRun_MonthlyDigestUsesLocalDate(t *testing.T) {
	// 13:00Z + 5h = 18:00 local on Wednesday 1 April
	now := time.Date(2026, 4, 1, 13, 0, 0, 0, time.UTC)
	store := newFakeStore(profile.UserProfile{ID: 1, Tier: profile.TierTeam, TimezoneOffsetMinutes: 300})
	d := &fakeDigester{}
	s := newTestScheduler(store, &fakeAnalyzer{}, d, now)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Digests.Monthly)
	assert.Equal(t, 0, res.Digests.Weekly)
	require.Len(t, d.calls, 1)
	assert.Equal(t, DigestMonthly, d.calls[0].kind)
	assert.Equal(t, time.Date(2026, 2, 28, 19, 0, 0, 0, time.UTC), d.calls[0].from)
	assert.Equal(t, time.Date(2026, 3, 31, 19, 0, 0, 0, time.UTC), d.calls[0].to)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), store.digests[0].PeriodStart)
}

func TestRun_DigestErrorsCounted(t *testing.T) {
	sunday := time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC)
	store := newFakeStore(profile.UserProfile{ID: 1, Tier: profile.TierPro})
	d := &fakeDigester{err: errors.New("timeout")}
	s := newTestScheduler(store, &fakeAnalyzer{}, d, sunday)

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Digests.Errors)
	assert.Empty(t, store.digests)
}

func TestRun_ManualSkipsDigests(t *testing.T) {
	sunday := time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC)
	store := newFakeStore(profile.UserProfile{ID: 1, Tier: profile.TierPro})
	d := &fakeDigester{}
	s := newTestScheduler(store, &fakeAnalyzer{}, d, sunday)

	_, err := s.Run(context.Background(), Options{Manual: true})
	require.NoError(t, err)
	assert.Empty(t, d.calls)
}
