package review

import (
	"time"

	"github.com/lib/pq"
)

// SourceTable is recorded on extraction jobs created from reviews.
const SourceTable = "reviews"

// Review is one evening reflection. Rows are written once.
type Review struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	UserID     uint64    `gorm:"index;not null" json:"userId"`
	ReviewDate time.Time `gorm:"type:date;not null" json:"reviewDate"`
	Wins       string    `gorm:"type:text;not null;default:''" json:"wins"`
	Struggles  string    `gorm:"type:text;not null;default:''" json:"struggles"`
	Notes      string    `gorm:"type:text;not null;default:''" json:"notes"`

	Tags pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"tags"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"createdAt"`
}
