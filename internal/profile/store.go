package profile

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("profile not found")

type Store struct {
	DB *gorm.DB
}

// Ensure creates a default profile for userID if none exists.
func (s *Store) Ensure(ctx context.Context, userID uint64) error {
	p := UserProfile{ID: userID, Tier: TierFree}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error
}

func (s *Store) Get(ctx context.Context, userID uint64) (UserProfile, error) {
	var p UserProfile
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserProfile{}, ErrNotFound
		}
		return UserProfile{}, err
	}
	return p, nil
}

// List returns every profile ordered by id.
func (s *Store) List(ctx context.Context) ([]UserProfile, error) {
	var out []UserProfile
	if err := s.DB.WithContext(ctx).Order("id asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SetTimezoneOffset(ctx context.Context, userID uint64, minutes int) error {
	res := s.DB.WithContext(ctx).Model(&UserProfile{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"timezone_offset_minutes": minutes,
			"updated_at":              time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
