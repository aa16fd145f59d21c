package profile

import "time"

const (
	TierFree = "free"
	TierPro  = "pro"
	TierTeam = "team"
)

// Feature names gated by CanAccess.
const (
	FeatureDigests       = "digests"
	FeatureDeepInsights  = "deep_insights"
	FeatureBasicInsights = "basic_insights"
)

// UserProfile shares its primary key with auth.User.
type UserProfile struct {
	ID                    uint64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Tier                  string     `gorm:"not null;default:'free'" json:"tier"`
	ProFeaturesEnabled    bool       `gorm:"not null;default:false" json:"proFeaturesEnabled"`
	TimezoneOffsetMinutes int        `gorm:"not null;default:0" json:"timezoneOffsetMinutes"`
	LastAnalyzedAt        *time.Time `gorm:"type:timestamptz;index" json:"lastAnalyzedAt"`
	CreatedAt             time.Time  `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt             time.Time  `gorm:"not null;default:now()" json:"updatedAt"`
}

// IsPro reports paid-tier access, including the per-user override.
func (p UserProfile) IsPro() bool {
	return p.ProFeaturesEnabled || p.Tier == TierPro || p.Tier == TierTeam
}

func (p UserProfile) CanAccess(feature string) bool {
	switch feature {
	case FeatureBasicInsights:
		return true
	case FeatureDigests, FeatureDeepInsights:
		return p.IsPro()
	default:
		return false
	}
}

// ValidOffset reports whether minutes is a real-world UTC offset.
func ValidOffset(minutes int) bool {
	return minutes >= -720 && minutes <= 840
}
