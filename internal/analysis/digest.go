package analysis

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"wheel/internal/localtime"
	"wheel/internal/profile"
)

// runDigests is independent of the analysis pass: it looks at the same
// profiles but only at the digest hour and day conditions.
func (s *Scheduler) runDigests(ctx context.Context, log zerolog.Logger, profiles []profile.UserProfile, now time.Time) DigestResult {
	var res DigestResult
	for _, p := range profiles {
		if ctx.Err() != nil {
			break
		}
		if !p.CanAccess(profile.FeatureDigests) {
			continue
		}
		lt := localtime.Local(now, p.TimezoneOffsetMinutes)
		if lt.Hour() != s.cfg.DigestHour {
			continue
		}
		today := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)

		if lt.Weekday() == s.cfg.WeeklyDigestDay {
			created, err := s.digest(ctx, p, DigestWeekly, today.AddDate(0, 0, -7), today)
			switch {
			case err != nil:
				res.Errors++
				log.Error().Err(err).Uint64("user_id", p.ID).Msg("weekly digest failed")
			case created:
				res.Weekly++
			}
		}
		if lt.Day() == 1 {
			created, err := s.digest(ctx, p, DigestMonthly, today.AddDate(0, -1, 0), today)
			switch {
			case err != nil:
				res.Errors++
				log.Error().Err(err).Uint64("user_id", p.ID).Msg("monthly digest failed")
			case created:
				res.Monthly++
			}
		}
	}
	return res
}

// digest generates and stores prompts for the local period [from,to). from
// and to are local wall-clock dates; the generator receives UTC instants.
func (s *Scheduler) digest(ctx context.Context, p profile.UserProfile, kind string, from, to time.Time) (created bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			created, err = false, panicError(r)
		}
	}()

	offset := time.Duration(p.TimezoneOffsetMinutes) * time.Minute
	prompts, err := s.digests.Generate(ctx, p, kind, from.Add(-offset), to.Add(-offset))
	if err != nil {
		return false, err
	}
	if len(prompts) == 0 {
		return false, nil
	}
	return s.store.SaveDigest(ctx, &DigestPrompt{
		UserID:      p.ID,
		Kind:        kind,
		PeriodStart: from,
		Prompts:     prompts,
	})
}
