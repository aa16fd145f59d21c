package review

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"wheel/internal/patterns"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	DefaultListLimit = 30
	maxListLimit     = 100
)

type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	ReviewDate time.Time
	Wins       string
	Struggles  string
	Notes      string
}

// reflectionText is what the classifier sees for a review. Empty sections
// are left out.
func reflectionText(in CreateInput) string {
	var b strings.Builder
	for _, sec := range []struct{ label, text string }{
		{"Wins", in.Wins},
		{"Struggles", in.Struggles},
		{"Notes", in.Notes},
	} {
		t := strings.TrimSpace(sec.text)
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sec.label)
		b.WriteString(": ")
		b.WriteString(t)
	}
	return b.String()
}

// Create stores the review and its extraction job in one transaction.
func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (Review, error) {
	text := reflectionText(in)
	if text == "" || in.ReviewDate.IsZero() {
		return Review{}, ErrInvalidInput
	}

	rv := Review{
		UserID:     userID,
		ReviewDate: in.ReviewDate,
		Wins:       strings.TrimSpace(in.Wins),
		Struggles:  strings.TrimSpace(in.Struggles),
		Notes:      strings.TrimSpace(in.Notes),
		Tags:       pq.StringArray(ExtractTags(text)),
	}
	if rv.Tags == nil {
		rv.Tags = pq.StringArray{}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rv).Error; err != nil {
			return err
		}
		job, ok := patterns.NewJob(userID, SourceTable, strconv.FormatUint(rv.ID, 10), text)
		if !ok {
			return nil
		}
		return patterns.InsertTx(tx, &job)
	})
	if err != nil {
		return Review{}, err
	}
	return rv, nil
}

// List returns the user's newest reviews. tag filters by hashtag when set.
func (s *Service) List(ctx context.Context, userID uint64, tag string, limit int) ([]Review, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = DefaultListLimit
	}
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if tag = strings.TrimSpace(strings.ToLower(tag)); tag != "" {
		q = q.Where("? = any(tags)", tag)
	}

	var out []Review
	if err := q.Order("review_date desc, id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
