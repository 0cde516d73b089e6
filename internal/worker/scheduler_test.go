package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingExporter struct {
	mu      sync.Mutex
	reasons []string
}

func (c *countingExporter) Export(_ context.Context, reason string, _ ...zap.Field) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reasons = append(c.reasons, reason)
	return nil
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(context.Background(), "every tuesday", &countingExporter{}, nil)
	assert.ErrorContains(t, err, "every tuesday")
}

func TestSchedulerRegistersExport(t *testing.T) {
	exp := &countingExporter{}
	s, err := NewScheduler(context.Background(), "@every 1h", exp, nil)
	require.NoError(t, err)

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	entries[0].Job.Run()
	assert.Equal(t, []string{ReasonScheduled}, exp.reasons)

	s.Start()
	s.Stop()
}

func TestSyncProcessorIsExporter(t *testing.T) {
	var _ Exporter = (*SyncProcessor)(nil)
}
