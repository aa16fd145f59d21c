package patterns

import (
	"strings"
	"time"
)

// Pattern types produced by the classifier.
const (
	TypeStruggle  = "struggle"
	TypeWin       = "win"
	TypeTheme     = "theme"
	TypePainPoint = "pain_point"
	TypeGoal      = "goal"
)

// Job status values. failed_retryable is picked up again by the next drain.
const (
	StatusPending         = "pending"
	StatusProcessed       = "processed"
	StatusFailedRetryable = "failed_retryable"
)

// Content bounds, in runes.
const (
	MaxStoredContent = 4000
	MaxPromptContent = 2000
	maxPatternText   = 500
)

func ValidType(t string) bool {
	switch t {
	case TypeStruggle, TypeWin, TypeTheme, TypePainPoint, TypeGoal:
		return true
	}
	return false
}

// ExtractionJob is one queued reflection awaiting classification. Rows are
// never deleted.
type ExtractionJob struct {
	ID          uint64 `gorm:"primaryKey"`
	UserID      uint64 `gorm:"index;not null"`
	SourceTable string `gorm:"type:text;not null"`
	SourceID    string `gorm:"type:text;not null"`
	Content     string `gorm:"type:text;not null"`

	Status            string     `gorm:"index;not null;default:'pending'"`
	Attempts          int        `gorm:"not null;default:0"`
	LastError         *string    `gorm:"type:text"`
	PatternsExtracted int        `gorm:"not null;default:0"`
	ProcessedAt       *time.Time `gorm:"type:timestamptz"`
	LockedAt          *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"index;not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (ExtractionJob) TableName() string { return "pattern_extraction_queue" }

func (j ExtractionJob) Processed() bool { return j.Status == StatusProcessed }

// Pattern is immutable once written.
type Pattern struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	UserID      uint64    `gorm:"index;not null" json:"userId"`
	PatternType string    `gorm:"type:text;index;not null" json:"patternType"`
	PatternText string    `gorm:"type:text;not null" json:"patternText"`
	SourceTable string    `gorm:"type:text;not null" json:"sourceTable"`
	SourceID    string    `gorm:"type:text;not null" json:"sourceId"`
	DetectedAt  time.Time `gorm:"index;not null;default:now()" json:"detectedAt"`
}

func (Pattern) TableName() string { return "user_patterns" }

// NewJob builds a pending job, trimming and bounding content. ok is false
// when there is nothing to classify.
func NewJob(userID uint64, sourceTable, sourceID, text string) (ExtractionJob, bool) {
	content := truncateRunes(strings.TrimSpace(text), MaxStoredContent)
	if content == "" {
		return ExtractionJob{}, false
	}
	return ExtractionJob{
		UserID:      userID,
		SourceTable: sourceTable,
		SourceID:    sourceID,
		Content:     content,
		Status:      StatusPending,
	}, true
}
