// README: Prunes old rows from the delivery audit log.
package job

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DeliveryPruner deletes audit rows older than a cutoff; *dispatch.AuditStore implements it.
type DeliveryPruner interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type DeliveryCleanupJob struct {
	store     DeliveryPruner
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewDeliveryCleanupJob(store DeliveryPruner, retention time.Duration, logger *slog.Logger) *DeliveryCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveryCleanupJob{store: store, retention: retention, logger: logger, now: time.Now}
}

func (j *DeliveryCleanupJob) Name() string {
	return "dispatch.delivery_cleanup"
}

func (j *DeliveryCleanupJob) Run(ctx context.Context) error {
	if j.store == nil {
		return errors.New("delivery cleanup: store not configured")
	}
	if j.retention <= 0 {
		return nil
	}
	deleted, err := j.store.DeleteOlderThan(ctx, j.now().Add(-j.retention))
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.logger.Info("pruned delivery log", "deleted_rows", deleted)
	}
	return nil
}
