package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/export"
	"github.com/hpcadmin/server/pkg/queue"
)

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	keys    []string
	err     error
}

func (f *fakeUploader) ExportPrefix() string { return "dir" }

func (f *fakeUploader) Upload(_ context.Context, key, contentType string, body io.Reader, n int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if int64(len(b)) != n || contentType != "application/json" {
		return "", errors.New("bad upload")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = b
	f.keys = append(f.keys, key)
	return "https://bucket/" + key, nil
}

// fakeQueue hands out jobs from a channel and records retries.
type fakeQueue struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retried []*queue.Job
}

func (q *fakeQueue) Dequeue(ctx context.Context) (*queue.Job, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case j := <-q.jobs:
		return j, queue.QueueDirectory, nil
	}
}

func (q *fakeQueue) Retry(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	q.retried = append(q.retried, job)
	return nil
}

func (q *fakeQueue) retries() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.retried)
}

func seededService(t *testing.T) *directory.Service {
	t.Helper()
	ctx := context.Background()
	svc := directory.NewService(directory.NewMemStore(), nil)
	owner, err := svc.CreateUser(ctx, directory.NewUser{Username: "owner", Firstname: "O", Lastname: "W", Email: "o@x"})
	require.NoError(t, err)
	p, err := svc.CreatePirg(ctx, directory.NewPirg{Name: "lab", OwnerID: owner.ID})
	require.NoError(t, err)
	_, err = svc.CreatePirgGroup(ctx, directory.NewGroup{Name: "gpu", PirgID: p.ID})
	require.NoError(t, err)
	return svc
}

func eventJob(t *testing.T, typ directory.EventType) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypeDirectoryEvent, queue.DirectoryEventPayload{Type: string(typ), PirgID: 1})
	require.NoError(t, err)
	return job
}

func TestProcessUploadsSnapshotAndLatest(t *testing.T) {
	up := &fakeUploader{}
	p := NewSyncProcessor(seededService(t), up, &fakeQueue{}, nil)
	p.now = func() time.Time { return time.Date(2024, 3, 2, 10, 4, 5, 0, time.UTC) }

	require.NoError(t, p.Process(context.Background(), eventJob(t, directory.EventGroupCreated)))

	assert.ElementsMatch(t, []string{"dir/directory-20240302T100405Z.json", "dir/latest.json"}, up.keys)
	assert.Equal(t, up.objects["dir/latest.json"], up.objects["dir/directory-20240302T100405Z.json"])

	var snap export.Snapshot
	require.NoError(t, json.Unmarshal(up.objects["dir/latest.json"], &snap))
	assert.Len(t, snap.Users, 1)
	require.Len(t, snap.Pirgs, 1)
	assert.Equal(t, "lab", snap.Pirgs[0].Name)
	assert.Len(t, snap.Groups, 1)
}

func TestProcessRejectsOtherJobs(t *testing.T) {
	up := &fakeUploader{}
	p := NewSyncProcessor(seededService(t), up, &fakeQueue{}, nil)

	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "recording_upload"})
	assert.Error(t, err)
	assert.Empty(t, up.keys)
}

func TestProcessUploadError(t *testing.T) {
	boom := errors.New("s3 down")
	p := NewSyncProcessor(seededService(t), &fakeUploader{err: boom}, &fakeQueue{}, nil)

	err := p.Process(context.Background(), eventJob(t, directory.EventUserCreated))
	assert.ErrorIs(t, err, boom)
}

func TestRunRetriesFailedJobs(t *testing.T) {
	q := &fakeQueue{jobs: make(chan *queue.Job, 2)}
	p := NewSyncProcessor(seededService(t), &fakeUploader{err: errors.New("s3 down")}, q, nil)
	p.backoff = time.Millisecond

	q.jobs <- eventJob(t, directory.EventUserCreated)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return q.retries() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 1, q.retried[0].Attempt)
}

func TestRunProcessesJobs(t *testing.T) {
	q := &fakeQueue{jobs: make(chan *queue.Job, 1)}
	up := &fakeUploader{}
	p := NewSyncProcessor(seededService(t), up, q, nil)

	q.jobs <- eventJob(t, directory.EventPirgCreated)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		up.mu.Lock()
		defer up.mu.Unlock()
		return len(up.keys) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, q.retries())
}
