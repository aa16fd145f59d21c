package patterns

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"
)

// leaseTimeout is how long a claimed job stays invisible to other drains.
const leaseTimeout = 5 * time.Minute

// GormStore is the Postgres-backed queue and pattern table.
type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) Insert(ctx context.Context, job *ExtractionJob) error {
	return s.DB.WithContext(ctx).Create(job).Error
}

// InsertTx enqueues inside a caller's transaction so the source row and its
// job commit together.
func InsertTx(tx *gorm.DB, job *ExtractionJob) error {
	return tx.Create(job).Error
}

// ClaimPending leases up to limit oldest unprocessed jobs.
// FOR UPDATE SKIP LOCKED keeps overlapping drains from claiming the same row.
func (s *GormStore) ClaimPending(ctx context.Context, limit int) ([]ExtractionJob, error) {
	var jobs []ExtractionJob
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Raw(`
with cte as (
  select id
  from pattern_extraction_queue
  where status in (?, ?)
    and (locked_at is null or locked_at < ?)
  order by created_at asc, id asc
  for update skip locked
  limit ?
)
update pattern_extraction_queue
set locked_at=now(), updated_at=now()
where id in (select id from cte)
returning *;
`, StatusPending, StatusFailedRetryable, time.Now().Add(-leaseTimeout), limit).Scan(&jobs).Error
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
		}
		return jobs[i].ID < jobs[k].ID
	})
	return jobs, nil
}

// Complete writes the job's patterns and marks it processed atomically.
func (s *GormStore) Complete(ctx context.Context, job ExtractionJob, rows []Pattern) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return tx.Exec(`
update pattern_extraction_queue
set status=?, patterns_extracted=?, attempts=attempts+1, processed_at=now(),
    locked_at=null, last_error=null, updated_at=now()
where id=?`, StatusProcessed, len(rows), job.ID).Error
	})
}

func (s *GormStore) MarkRetryable(ctx context.Context, id uint64, errMsg string) error {
	return s.DB.WithContext(ctx).Exec(`
update pattern_extraction_queue
set status=?, attempts=attempts+1, last_error=?, locked_at=null, updated_at=now()
where id=?`, StatusFailedRetryable, errMsg, id).Error
}

// Recent returns a user's patterns detected at or after since, newest first.
func (s *GormStore) Recent(ctx context.Context, userID uint64, since time.Time, limit int) ([]Pattern, error) {
	var out []Pattern
	q := s.DB.WithContext(ctx).
		Where("user_id = ? AND detected_at >= ?", userID, since).
		Order("detected_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
