package order

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TaskExpireSweep = "order:expire:sweep"

// NewExpireSweepTask builds the periodic sweep task. The payload is empty;
// the handler derives everything from the clock.
func NewExpireSweepTask() *asynq.Task {
	return asynq.NewTask(TaskExpireSweep, nil)
}

// HandleExpireSweep ages out orders the lazy read-path reconciliation has
// not touched: opened orders past their ten-minute window and pending orders
// past their confirmation deadline both flip to failed. The read path stays
// correct without this; the sweep just keeps stale rows from lingering.
func (s *Service) HandleExpireSweep(ctx context.Context, _ *asynq.Task) error {
	now := time.Now()

	opened := s.db.WithContext(ctx).Model(&Order{}).
		Where("status = ? AND created_at < ?", StatusOpened, now.Add(-openedTTL)).
		Updates(map[string]any{
			"status":              StatusFailed,
			"current_status_date": now,
			"error":               mustJSON(timeoutError),
		})
	if opened.Error != nil {
		return opened.Error
	}

	pending := s.db.WithContext(ctx).Model(&Order{}).
		Where("status = ? AND current_status_date < ?", StatusPending, now.Add(-pendingTTL)).
		Updates(map[string]any{
			"status":              StatusFailed,
			"current_status_date": now,
			"error":               mustJSON(timeoutError),
		})
	if pending.Error != nil {
		return pending.Error
	}

	if opened.RowsAffected > 0 || pending.RowsAffected > 0 {
		zap.L().Info("expired stale orders",
			zap.Int64("opened", opened.RowsAffected),
			zap.Int64("pending", pending.RowsAffected))
	}
	return nil
}
