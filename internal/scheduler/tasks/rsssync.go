package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/slipstream/gamearr/internal/rsssync"
	"github.com/slipstream/gamearr/internal/scheduler"
)

const RssSyncTaskID = "rss-sync"

// FeedSyncer runs one feed cycle across all indexers.
type FeedSyncer interface {
	Run(ctx context.Context) error
}

// RegisterRssSyncTask registers the RSS sync task with the scheduler. A
// cycle already running (e.g. a manual trigger) is not an error.
func RegisterRssSyncTask(sched *scheduler.Scheduler, service FeedSyncer, interval time.Duration) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          RssSyncTaskID,
		Name:        "RSS Sync",
		Description: "Fetch recent releases from indexer feeds and grab matching items",
		Interval:    interval,
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			if err := service.Run(ctx); err != nil && !errors.Is(err, rsssync.ErrSyncRunning) {
				return err
			}
			return nil
		},
	})
}
