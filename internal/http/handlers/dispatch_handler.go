// README: Queue state and delivery outcome counters.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"driverbot/internal/modules/dispatch"
)

// QueueState is satisfied by *dispatch.MessageQueue.
type QueueState interface {
	Running() bool
	Workers() int
	Len() int
}

// DeliveryStats is satisfied by *dispatch.AuditStore.
type DeliveryStats interface {
	Stats(ctx context.Context, since time.Time) (map[dispatch.Outcome]int64, error)
}

type DispatchHandler struct {
	queue QueueState
	stats DeliveryStats
	now   func() time.Time
}

func NewDispatchHandler(queue QueueState, stats DeliveryStats) *DispatchHandler {
	return &DispatchHandler{queue: queue, stats: stats, now: time.Now}
}

// Stats reports the queue and, when the delivery log is on, outcome counts
// over the ?window= duration (default 24h).
func (h *DispatchHandler) Stats(c *gin.Context) {
	window := 24 * time.Hour
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(c, http.StatusBadRequest, "invalid window")
			return
		}
		window = d
	}
	resp := gin.H{
		"queue": gin.H{
			"running": h.queue.Running(),
			"workers": h.queue.Workers(),
			"pending": h.queue.Len(),
		},
		"window": window.String(),
	}
	if h.stats != nil {
		counts, err := h.stats.Stats(c.Request.Context(), h.now().Add(-window))
		if err != nil {
			writeError(c, http.StatusInternalServerError, "internal error")
			return
		}
		resp["outcomes"] = counts
	}
	writeJSON(c, http.StatusOK, resp)
}
