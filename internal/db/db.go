package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wheel/internal/analysis"
	"wheel/internal/auth"
	"wheel/internal/patterns"
	"wheel/internal/profile"
	"wheel/internal/review"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return gdb, nil
}

func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// indexes are the query-path indexes AutoMigrate does not derive from tags.
var indexes = []string{
	`create index if not exists idx_queue_drain on pattern_extraction_queue(status, created_at, id);`,
	`create index if not exists idx_queue_user on pattern_extraction_queue(user_id, created_at desc);`,
	`create index if not exists idx_patterns_user_detected on user_patterns(user_id, detected_at desc);`,
	`create index if not exists idx_insights_user_created on user_insights(user_id, created_at desc);`,
	`create index if not exists idx_logs_user_date on analysis_logs(user_id, analysis_date desc);`,
	`create index if not exists idx_reviews_user_date on reviews(user_id, review_date desc);`,
	`create index if not exists idx_reviews_tags on reviews using gin (tags);`,
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&auth.User{},
		&profile.UserProfile{},
		&patterns.ExtractionJob{},
		&patterns.Pattern{},
		&analysis.Insight{},
		&analysis.LogEntry{},
		&analysis.DigestPrompt{},
		&review.Review{},
	); err != nil {
		return err
	}

	for _, s := range indexes {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}
