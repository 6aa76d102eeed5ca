// README: Order event intake and per-order delivery log.
package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"driverbot/internal/modules/dispatch"
	"driverbot/internal/modules/order"
	"driverbot/internal/types"
)

const maxOrderBody = 1 << 20

// OrderDispatcher is satisfied by *dispatch.Dispatcher.
type OrderDispatcher interface {
	Handle(ctx context.Context, o *order.Order) order.Action
}

// DeliveryLog is satisfied by *dispatch.AuditStore.
type DeliveryLog interface {
	ListForOrder(ctx context.Context, orderID types.ID) ([]dispatch.DeliveryRecord, error)
}

// DispatchTimes is satisfied by *matching.Service.
type DispatchTimes interface {
	DispatchedAt(ctx context.Context, orderID types.ID) (time.Time, bool, error)
}

type OrderHandler struct {
	dispatcher OrderDispatcher
	log        DeliveryLog
	times      DispatchTimes
}

// NewOrderHandler builds the handler; log and times may be nil.
func NewOrderHandler(dispatcher OrderDispatcher, log DeliveryLog, times DispatchTimes) *OrderHandler {
	return &OrderHandler{dispatcher: dispatcher, log: log, times: times}
}

// Event accepts an order snapshot pushed by the backend. Malformed payloads
// get 400; everything else is accepted and dispatched by status.
func (h *OrderHandler) Event(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxOrderBody))
	if err != nil {
		writeError(c, http.StatusBadRequest, "unreadable body")
		return
	}
	o, err := order.Parse(body)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	action := h.dispatcher.Handle(c.Request.Context(), o)
	writeJSON(c, http.StatusAccepted, gin.H{"order_id": o.ID, "status": o.Status, "action": action})
}

type deliveryResponse struct {
	ChatID   types.ChatID     `json:"chat_id"`
	Outcome  dispatch.Outcome `json:"outcome"`
	Attempts int              `json:"attempts"`
	Error    string           `json:"error,omitempty"`
	At       string           `json:"at"`
}

func (h *OrderHandler) Deliveries(c *gin.Context) {
	if h.log == nil {
		writeError(c, http.StatusServiceUnavailable, "delivery log disabled")
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeOrderError(c, order.ErrBadRequest)
		return
	}
	recs, err := h.log.ListForOrder(c.Request.Context(), types.ID(id))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]deliveryResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, deliveryResponse{
			ChatID:   r.ChatID,
			Outcome:  r.Outcome,
			Attempts: r.Attempts,
			Error:    r.Error,
			At:       r.At.UTC().Format(time.RFC3339),
		})
	}
	resp := gin.H{"order_id": id, "deliveries": out, "dispatched_at": nil}
	if h.times != nil {
		at, found, err := h.times.DispatchedAt(c.Request.Context(), types.ID(id))
		if err != nil {
			writeError(c, http.StatusInternalServerError, "internal error")
			return
		}
		if found {
			resp["dispatched_at"] = at.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(c, http.StatusOK, resp)
}
