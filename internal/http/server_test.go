package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httptransport "driverbot/internal/http"
	"driverbot/internal/http/middleware"
	"driverbot/internal/modules/dispatch"
	"driverbot/internal/modules/order"
	"driverbot/internal/types"
)

type stubDispatcher struct {
	mu     sync.Mutex
	orders []*order.Order
}

func (s *stubDispatcher) Handle(_ context.Context, o *order.Order) order.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
	return order.DispatchActionFor(o.Status)
}

type stubQueue struct{}

func (stubQueue) Running() bool { return true }
func (stubQueue) Workers() int  { return 3 }
func (stubQueue) Len() int      { return 7 }

type stubDeliveries struct {
	since time.Time
}

func (s *stubDeliveries) ListForOrder(_ context.Context, id types.ID) ([]dispatch.DeliveryRecord, error) {
	return []dispatch.DeliveryRecord{
		{OrderID: id, ChatID: 100, Outcome: dispatch.OutcomeDelivered, Attempts: 1, At: time.Unix(0, 0)},
		{OrderID: id, ChatID: 200, Outcome: dispatch.OutcomeDropped, Attempts: 4, Error: "blocked", At: time.Unix(0, 0)},
	}, nil
}

func (s *stubDeliveries) Stats(_ context.Context, since time.Time) (map[dispatch.Outcome]int64, error) {
	s.since = since
	return map[dispatch.Outcome]int64{dispatch.OutcomeDelivered: 10, dispatch.OutcomeDropped: 1}, nil
}

type stubDispatches struct{}

func (stubDispatches) DispatchedAt(_ context.Context, id types.ID) (time.Time, bool, error) {
	if id == 42 {
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), true, nil
	}
	return time.Time{}, false, nil
}

type stubUpdates struct {
	mu  sync.Mutex
	ids []int
}

func (s *stubUpdates) Handle(_ context.Context, upd tgbotapi.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, upd.UpdateID)
}

type fixture struct {
	engine     *gin.Engine
	dispatcher *stubDispatcher
	deliveries *stubDeliveries
	updates    *stubUpdates
}

func newFixture(withDeliveries bool) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{dispatcher: &stubDispatcher{}, deliveries: &stubDeliveries{}, updates: &stubUpdates{}}
	reg := prometheus.NewRegistry()
	dispatch.NewMetrics(reg, "driverbot")
	deps := httptransport.ServerDeps{
		Dispatcher:    f.dispatcher,
		Queue:         stubQueue{},
		Dispatches:    stubDispatches{},
		Updates:       f.updates,
		Gatherer:      reg,
		APIKey:        "key",
		WebhookSecret: "tg-secret",
	}
	if withDeliveries {
		deps.Deliveries = f.deliveries
	}
	f.engine = httptransport.NewServer(deps).Routes()
	return f
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

var apiKey = map[string]string{middleware.HeaderAPIKey: "key"}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(false)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", nil).Code)

	w := f.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "driverbot_queue_pending")
}

func TestOrderEventDispatches(t *testing.T) {
	f := newFixture(false)
	body := `{"id": 42, "status": "created", "content_type_name": "passengertravel",
		"from_city": "tashkent", "to_city": "samarkand", "content_object": {"price": 100000}}`

	w := f.do(http.MethodPost, "/api/orders/events", body, apiKey)
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(42), resp["order_id"])
	assert.Equal(t, string(order.ActionFanOut), resp["action"])
	require.Len(t, f.dispatcher.orders, 1)
	assert.Equal(t, types.ID(42), f.dispatcher.orders[0].ID)
}

func TestOrderEventRejectsBadPayload(t *testing.T) {
	f := newFixture(false)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/orders/events", `{"id": 0}`, apiKey).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/orders/events", `not json`, apiKey).Code)
	assert.Empty(t, f.dispatcher.orders)
}

func TestOrderEventRequiresAPIKey(t *testing.T) {
	f := newFixture(false)
	w := f.do(http.MethodPost, "/api/orders/events", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDispatchStats(t *testing.T) {
	f := newFixture(true)

	w := f.do(http.MethodGet, "/api/dispatch/stats?window=1h", "", apiKey)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Queue struct {
			Running bool `json:"running"`
			Workers int  `json:"workers"`
			Pending int  `json:"pending"`
		} `json:"queue"`
		Outcomes map[string]int64 `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Queue.Running)
	assert.Equal(t, 7, resp.Queue.Pending)
	assert.Equal(t, int64(10), resp.Outcomes["delivered"])
	assert.WithinDuration(t, time.Now().Add(-time.Hour), f.deliveries.since, 5*time.Second)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/dispatch/stats?window=soon", "", apiKey).Code)
}

func TestDispatchStatsWithoutDeliveryLog(t *testing.T) {
	f := newFixture(false)
	w := f.do(http.MethodGet, "/api/dispatch/stats", "", apiKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "outcomes")
}

func TestOrderDeliveries(t *testing.T) {
	f := newFixture(true)

	w := f.do(http.MethodGet, "/api/orders/42/deliveries", "", apiKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"dropped"`)
	assert.Contains(t, w.Body.String(), `"error":"blocked"`)
	assert.Contains(t, w.Body.String(), `"dispatched_at":"2026-01-02T03:04:05Z"`)

	w = f.do(http.MethodGet, "/api/orders/43/deliveries", "", apiKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dispatched_at":null`)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/orders/abc/deliveries", "", apiKey).Code)
	assert.Equal(t, http.StatusServiceUnavailable, newFixture(false).do(http.MethodGet, "/api/orders/42/deliveries", "", apiKey).Code)
}

func TestTelegramWebhook(t *testing.T) {
	f := newFixture(false)
	secret := map[string]string{middleware.HeaderTelegramSecret: "tg-secret"}

	w := f.do(http.MethodPost, "/telegram/webhook", `{"update_id": 9}`, secret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{9}, f.updates.ids)

	w = f.do(http.MethodPost, "/telegram/webhook", `{"update_id": 10}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Len(t, f.updates.ids, 1)
}
