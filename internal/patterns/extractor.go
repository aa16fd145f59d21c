package patterns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultBatchSize = 10
	MaxBatchSize     = 100
)

// Instruction is the fixed system prompt sent with every job.
const Instruction = `You extract recurring patterns from a startup founder's private reflection.

Return ONLY a JSON array. Each element is an object {"type": "...", "text": "..."} where type is one of:
- "struggle": something the founder is fighting with
- "win": a success or progress worth noting
- "theme": a recurring topic
- "pain_point": a concrete, repeated friction
- "goal": something the founder wants to achieve

Keep each text under 12 words. Return [] if nothing stands out. No prose, no markdown.`

// Classifier returns raw model text for content, or "" when no answer is
// available. An error means the call itself failed and is worth retrying.
type Classifier interface {
	Classify(ctx context.Context, instruction, content string) (string, error)
}

// QueueStore is the persistence the extractor needs.
type QueueStore interface {
	Insert(ctx context.Context, job *ExtractionJob) error
	ClaimPending(ctx context.Context, limit int) ([]ExtractionJob, error)
	Complete(ctx context.Context, job ExtractionJob, rows []Pattern) error
	MarkRetryable(ctx context.Context, id uint64, errMsg string) error
}

// DrainResult summarises one ProcessQueue call.
type DrainResult struct {
	Fetched         int `json:"fetched"`
	Processed       int `json:"processed"`
	PatternsCreated int `json:"patternsCreated"`
	Failed          int `json:"failed"`
}

type Extractor struct {
	store      QueueStore
	classifier Classifier
	log        zerolog.Logger
	now        func() time.Time
}

func NewExtractor(store QueueStore, classifier Classifier, log zerolog.Logger) *Extractor {
	return &Extractor{
		store:      store,
		classifier: classifier,
		log:        log.With().Str("component", "pattern_extractor").Logger(),
		now:        time.Now,
	}
}

// Enqueue queues text for classification. Blank text is a no-op.
func (e *Extractor) Enqueue(ctx context.Context, userID uint64, sourceTable, sourceID, text string) error {
	job, ok := NewJob(userID, sourceTable, sourceID, text)
	if !ok {
		return nil
	}
	if err := e.store.Insert(ctx, &job); err != nil {
		return fmt.Errorf("enqueue extraction job: %w", err)
	}
	e.log.Debug().Uint64("user_id", userID).Uint64("job_id", job.ID).Str("source_table", sourceTable).Msg("extraction job queued")
	return nil
}

// ProcessQueue drains up to batchSize of the oldest unprocessed jobs. A job
// whose classifier call or storage write fails is left failed_retryable and
// the batch moves on.
func (e *Extractor) ProcessQueue(ctx context.Context, batchSize int) (DrainResult, error) {
	batchSize = clampBatch(batchSize)
	log := e.log.With().Str("run_id", uuid.NewString()).Logger()

	jobs, err := e.store.ClaimPending(ctx, batchSize)
	if err != nil {
		return DrainResult{}, fmt.Errorf("claim extraction jobs: %w", err)
	}

	res := DrainResult{Fetched: len(jobs)}
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		n, err := e.processJob(ctx, job)
		if err != nil {
			res.Failed++
			log.Error().Err(err).Uint64("job_id", job.ID).Msg("extraction job failed, will retry")
			if merr := e.store.MarkRetryable(ctx, job.ID, err.Error()); merr != nil {
				log.Error().Err(merr).Uint64("job_id", job.ID).Msg("failed to mark job retryable")
			}
			continue
		}
		res.Processed++
		res.PatternsCreated += n
	}

	log.Info().
		Int("fetched", res.Fetched).
		Int("processed", res.Processed).
		Int("patterns", res.PatternsCreated).
		Int("failed", res.Failed).
		Msg("extraction queue drained")
	return res, ctx.Err()
}

func (e *Extractor) processJob(ctx context.Context, job ExtractionJob) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	raw := ""
	if e.classifier != nil {
		out, cerr := e.classifier.Classify(ctx, Instruction, truncateRunes(job.Content, MaxPromptContent))
		if cerr != nil {
			// transport and upstream failures leave the job for the next drain
			return 0, fmt.Errorf("classify job %d: %w", job.ID, cerr)
		}
		raw = out
	}

	var rows []Pattern
	if strings.TrimSpace(raw) != "" {
		parsed := Parse(raw)
		if !parsed.OK {
			e.log.Warn().Uint64("job_id", job.ID).Str("response", truncateRunes(raw, 200)).Msg("unparseable classifier output")
		}
		now := e.now().UTC()
		for _, it := range parsed.Items {
			rows = append(rows, Pattern{
				UserID:      job.UserID,
				PatternType: it.Type,
				PatternText: it.Text,
				SourceTable: job.SourceTable,
				SourceID:    job.SourceID,
				DetectedAt:  now,
			})
		}
	}

	if err := e.store.Complete(ctx, job, rows); err != nil {
		return 0, fmt.Errorf("complete job %d: %w", job.ID, err)
	}
	return len(rows), nil
}

func clampBatch(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}
