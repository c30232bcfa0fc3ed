package tasks

import (
	"context"
	"time"

	"github.com/slipstream/gamearr/internal/scheduler"
)

const DownloadPollTaskID = "download-poll"

// DownloadPoller refreshes tracked downloads from every client.
type DownloadPoller interface {
	PollAll(ctx context.Context) error
}

// RegisterDownloadPollTask registers the download client polling task.
func RegisterDownloadPollTask(sched *scheduler.Scheduler, tracker DownloadPoller, interval time.Duration) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          DownloadPollTaskID,
		Name:        "Download Poll",
		Description: "Refresh tracked downloads from download clients and import completed ones",
		Interval:    interval,
		RunOnStart:  true,
		Func:        tracker.PollAll,
	})
}
