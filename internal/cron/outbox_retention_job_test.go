package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/freshfold/freshfold-backend/pkg/logger"
)

type fakeOutboxRetentionRepo struct {
	lastCutoff time.Time
	batch      int
	called     int
	remaining  int64
	err        error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(cutoff time.Time, batch int) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	f.batch = batch
	if f.err != nil {
		return 0, f.err
	}
	deleted := min(f.remaining, int64(batch))
	f.remaining -= deleted
	return deleted, nil
}

func newRetentionJob(t *testing.T, repo *fakeOutboxRetentionRepo, batch int) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard}),
		Repository: repo,
		Batch:      batch,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

func TestOutboxRetentionJobDeletesInBatches(t *testing.T) {
	now := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{remaining: 25}
	job := newRetentionJob(t, repo, 10)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-defaultRetentionAge)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	// 10 + 10 + 5 rows across three passes
	if repo.called != 3 {
		t.Fatalf("expected 3 delete passes, got %d", repo.called)
	}
	if repo.remaining != 0 {
		t.Fatalf("expected all rows deleted, %d remain", repo.remaining)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{err: errors.New("boom")}
	job := newRetentionJob(t, repo, 10)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
