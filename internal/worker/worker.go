// Package worker consumes directory events and exports snapshots to S3.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpcadmin/server/internal/export"
	"github.com/hpcadmin/server/pkg/queue"
	"github.com/hpcadmin/server/pkg/storage"
)

// JobQueue is the part of queue.Queue the processor drives.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Uploader stores snapshot objects.
type Uploader interface {
	ExportPrefix() string
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
}

var (
	_ JobQueue = (*queue.Queue)(nil)
	_ Uploader = (*storage.S3)(nil)
)

// SyncProcessor exports a fresh directory snapshot for every event job.
type SyncProcessor struct {
	source  export.Source
	store   Uploader
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration
	now     func() time.Time
}

// NewSyncProcessor creates a snapshot export processor.
func NewSyncProcessor(source export.Source, store Uploader, q JobQueue, logger *zap.Logger) *SyncProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncProcessor{
		source:  source,
		store:   store,
		queue:   q,
		logger:  logger,
		backoff: queue.RetryBackoff,
		now:     time.Now,
	}
}

// Process executes one directory_event job.
func (p *SyncProcessor) Process(ctx context.Context, job *queue.Job) error {
	event, err := job.DirectoryEvent()
	if err != nil {
		return err
	}
	return p.Export(ctx, event.Type, zap.String("job_id", job.ID))
}

// Export uploads a fresh snapshot under its timestamped key and as latest.json.
// Both uploads run concurrently; reason is logged.
func (p *SyncProcessor) Export(ctx context.Context, reason string, fields ...zap.Field) error {
	snap, err := export.Build(ctx, p.source, p.now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	prefix := p.store.ExportPrefix()
	var url string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		url, err = p.store.Upload(gctx, storage.SnapshotKey(prefix, snap.GeneratedAt), storage.ContentTypeJSON, bytes.NewReader(body), int64(len(body)))
		if err != nil {
			return fmt.Errorf("s3 upload: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := p.store.Upload(gctx, storage.LatestKey(prefix), storage.ContentTypeJSON, bytes.NewReader(body), int64(len(body))); err != nil {
			return fmt.Errorf("s3 upload latest: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	p.logger.Info("directory snapshot exported", append(fields,
		zap.String("reason", reason),
		zap.String("url", url),
		zap.Int("users", len(snap.Users)),
		zap.Int("pirgs", len(snap.Pirgs)),
		zap.Int("groups", len(snap.Groups)),
	)...)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. It returns
// when ctx is done.
func (p *SyncProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("sync worker stopping")
			return
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *SyncProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
