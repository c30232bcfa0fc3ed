package tasks

import (
	"context"
	"time"

	"github.com/slipstream/gamearr/internal/scheduler"
)

const PendingReleaseTaskID = "pending-release-process"

// PendingProcessor grabs pending releases whose delay has elapsed.
type PendingProcessor interface {
	ProcessReady(ctx context.Context) (int, error)
}

// RegisterPendingReleaseTask registers the task that grabs delayed releases
// once they are ready.
func RegisterPendingReleaseTask(sched *scheduler.Scheduler, store PendingProcessor, interval time.Duration) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          PendingReleaseTaskID,
		Name:        "Process Pending Releases",
		Description: "Grab delayed releases whose delay has elapsed",
		Interval:    interval,
		Func: func(ctx context.Context) error {
			_, err := store.ProcessReady(ctx)
			return err
		},
	})
}
