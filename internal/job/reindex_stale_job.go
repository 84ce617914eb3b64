package job

import (
	"context"
)

const defaultReindexBatch = 20

type StaleReindexer interface {
	ReindexStale(ctx context.Context, limit int) (int, error)
}

// ReindexStaleJob re-embeds documents edited since their last index.
type ReindexStaleJob struct {
	reindexer StaleReindexer
	batch     int
}

func NewReindexStaleJob(reindexer StaleReindexer, batch int) *ReindexStaleJob {
	if batch <= 0 {
		batch = defaultReindexBatch
	}
	return &ReindexStaleJob{reindexer: reindexer, batch: batch}
}

func (j *ReindexStaleJob) Name() string {
	return "reindex_stale"
}

func (j *ReindexStaleJob) Run(ctx context.Context) error {
	if j.reindexer == nil {
		return nil
	}
	_, err := j.reindexer.ReindexStale(ctx, j.batch)
	return err
}
