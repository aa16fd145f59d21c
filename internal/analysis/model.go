package analysis

import (
	"time"

	"github.com/lib/pq"
)

const (
	LogSuccess = "success"
	LogError   = "error"
)

// Insight is one persisted analyzer finding.
type Insight struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	UserID       uint64    `gorm:"index;not null" json:"userId"`
	AnalysisDate time.Time `gorm:"type:date;index;not null" json:"analysisDate"`
	Text         string    `gorm:"type:text;not null" json:"text"`
	Type         string    `gorm:"type:text;not null" json:"type"`
	DataSource   string    `gorm:"type:text;not null;default:''" json:"dataSource"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"createdAt"`
}

func (Insight) TableName() string { return "user_insights" }

// LogEntry is the append-only audit row written once per user per attempt.
type LogEntry struct {
	ID                uint64    `gorm:"primaryKey"`
	UserID            uint64    `gorm:"index;not null"`
	AnalysisDate      time.Time `gorm:"type:date;index;not null"`
	Status            string    `gorm:"type:text;not null"`
	InsightsGenerated int       `gorm:"not null;default:0"`
	ErrorMessage      *string   `gorm:"type:text"`
	ProcessingTimeMs  int64     `gorm:"not null;default:0"`
	CreatedAt         time.Time `gorm:"not null;default:now()"`
}

func (LogEntry) TableName() string { return "analysis_logs" }

const (
	DigestWeekly  = "weekly"
	DigestMonthly = "monthly"
)

// DigestPrompt holds the reflection questions generated for one period.
// (user_id, kind, period_start) is unique.
type DigestPrompt struct {
	ID          uint64         `gorm:"primaryKey" json:"id"`
	UserID      uint64         `gorm:"not null;uniqueIndex:uq_digest_period" json:"userId"`
	Kind        string         `gorm:"type:text;not null;uniqueIndex:uq_digest_period" json:"kind"`
	PeriodStart time.Time      `gorm:"type:date;not null;uniqueIndex:uq_digest_period" json:"periodStart"`
	Prompts     pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"prompts"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"createdAt"`
}
