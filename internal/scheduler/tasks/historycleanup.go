package tasks

import (
	"context"

	"github.com/slipstream/gamearr/internal/scheduler"
)

const HistoryCleanupTaskID = "history-cleanup"

// HistoryCleaner trims history past its retention period.
type HistoryCleaner interface {
	CleanupOldEntries(ctx context.Context) error
}

// RegisterHistoryCleanupTask registers the history cleanup task with the scheduler.
// The task runs daily at 2 AM to delete entries older than the configured retention period.
func RegisterHistoryCleanupTask(sched *scheduler.Scheduler, historyService HistoryCleaner) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryCleanupTaskID,
		Name:        "History Cleanup",
		Description: "Deletes history entries older than the configured retention period",
		Cron:        "0 2 * * *",
		Func:        historyService.CleanupOldEntries,
	})
}
