package analysis

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wheel/internal/profile"
)

var errAlreadyAnalyzed = errors.New("already analyzed")

// GormStore persists scheduler output in Postgres.
type GormStore struct {
	DB       *gorm.DB
	Profiles *profile.Store
}

func (s *GormStore) ListProfiles(ctx context.Context) ([]profile.UserProfile, error) {
	return s.Profiles.List(ctx)
}

func (s *GormStore) GetProfile(ctx context.Context, userID uint64) (profile.UserProfile, error) {
	return s.Profiles.Get(ctx, userID)
}

// CommitAnalysis is a conditional write: the profile update only matches rows
// not yet analyzed today, so of two overlapping runs one commits and the
// other rolls back.
func (s *GormStore) CommitAnalysis(ctx context.Context, userID uint64, dayStart, analyzedAt time.Time, insights []Insight) (bool, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&profile.UserProfile{}).
			Where("id = ? AND (last_analyzed_at IS NULL OR last_analyzed_at < ?)", userID, dayStart).
			Updates(map[string]any{
				"last_analyzed_at": analyzedAt,
				"updated_at":       analyzedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyAnalyzed
		}
		if len(insights) == 0 {
			return nil
		}
		return tx.Create(&insights).Error
	})
	if errors.Is(err, errAlreadyAnalyzed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GormStore) AppendLog(ctx context.Context, e *LogEntry) error {
	return s.DB.WithContext(ctx).Create(e).Error
}

func (s *GormStore) SaveDigest(ctx context.Context, d *DigestPrompt) (bool, error) {
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(d)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecentInsights returns a user's newest insights.
func (s *GormStore) RecentInsights(ctx context.Context, userID uint64, limit int) ([]Insight, error) {
	var out []Insight
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// RecentDigests returns a user's newest digest prompts.
func (s *GormStore) RecentDigests(ctx context.Context, userID uint64, limit int) ([]DigestPrompt, error) {
	var out []DigestPrompt
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("period_start desc, id desc").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
