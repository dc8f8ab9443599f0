package workers

import (
	"chat-presence/observability"
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct {
	calls atomic.Int32
}

func (c *countingExpirer) ExpireTyping(ctx context.Context) int {
	c.calls.Add(1)
	return 1
}

func TestTypingExpiryWorker_Sweeps_Until_Canceled(t *testing.T) {
	req := require.New(t)
	expirer := &countingExpirer{}
	worker := NewTypingExpiryWorker(slog.Default(), expirer, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// When the worker runs until its context expires
	err := worker.Run(ctx)

	// Then it swept several times and stopped cleanly
	req.NoError(err)
	req.GreaterOrEqual(expirer.calls.Load(), int32(3))
}

func TestHeartbeatWorker_Updates_Process_Stats(t *testing.T) {
	req := require.New(t)
	monitoring := observability.NewMonitoringManager(slog.Default())
	worker := NewHeartbeatWorker(slog.Default(), monitoring, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req.NoError(worker.Run(ctx))

	stats := monitoring.GetLatest()
	req.Equal(int32(os.Getpid()), stats.Process.PID)
	req.NotZero(stats.Process.RSSBytes)
}

func TestSelfStats(t *testing.T) {
	req := require.New(t)
	p, err := process.NewProcess(int32(os.Getpid()))
	req.NoError(err)

	stats, err := selfStats(p)
	req.NoError(err)
	req.Equal(p.Pid, stats.PID)
	req.NotEmpty(stats.Status)
}
