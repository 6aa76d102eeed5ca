// README: Order tests (state machine, payload parsing, driver actions).
package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"driverbot/internal/types"
)

// TestCanTransition verifies the state machine transition table.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy path driven by driver actions
		{StatusCreated, StatusAssigned, true},
		{StatusSearched, StatusAssigned, true},
		{StatusAssigned, StatusArrived, true},
		{StatusArrived, StatusStarted, true},
		{StatusStarted, StatusEnded, true},
		// cancels before the trip starts
		{StatusCreated, StatusCanceled, true},
		{StatusAssigned, StatusCanceled, true},
		{StatusArrived, StatusCanceled, true},
		{StatusCreated, StatusRejected, true},
		// terminal states have no outgoing transitions
		{StatusEnded, StatusCreated, false},
		{StatusCanceled, StatusAssigned, false},
		{StatusRejected, StatusAssigned, false},
		// skipping states
		{StatusCreated, StatusStarted, false},
		{StatusAssigned, StatusEnded, false},
		{StatusStarted, StatusCanceled, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDispatchActionFor(t *testing.T) {
	want := map[Status]Action{
		StatusCreated:  ActionFanOut,
		StatusStarted:  ActionSafeTrip,
		StatusSearched: ActionNone,
		StatusAssigned: ActionNone,
		StatusArrived:  ActionNone,
		StatusEnded:    ActionNone,
		StatusCanceled: ActionNone,
		StatusRejected: ActionNone,
	}
	for s, a := range want {
		if got := DispatchActionFor(s); got != a {
			t.Errorf("DispatchActionFor(%s) = %s, want %s", s, got, a)
		}
	}
	for s := range knownStatuses {
		if s.Terminal() && len(AllowedTransitions[s]) != 0 {
			t.Errorf("terminal status %s has transitions", s)
		}
	}
}

func TestParseRideOrder(t *testing.T) {
	payload := `{
		"id": 42,
		"user": 7,
		"status": "created",
		"content_type_name": "passengertravel",
		"from_city": "tashkent",
		"to_city": "samarkand",
		"creator": {"id": 7, "telegram_id": 555, "full_name": "Ali", "phone": "+998901234567", "language": "ru", "total_rides": 3},
		"driver": null,
		"driver_details": null,
		"content_object": {
			"price": "100000",
			"travel_class": "Comfort",
			"passenger": 2,
			"has_woman": true,
			"from_location": {"location": {"latitude": 41.3, "longitude": 69.2}}
		}
	}`
	o, err := Parse([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if o.ID != 42 || o.UserID != 7 || o.Status != StatusCreated {
		t.Fatalf("unexpected header: %+v", o)
	}
	if o.ContentType != ContentRide || o.IsDelivery() {
		t.Fatalf("expected ride content, got %s", o.ContentType)
	}
	if o.Content.Price.Amount != 100000 || o.Content.Price.Currency != types.DefaultCurrency {
		t.Fatalf("unexpected price: %+v", o.Content.Price)
	}
	if o.Content.Passengers != 2 || !o.Content.HasWoman || o.Content.TravelClass != "Comfort" {
		t.Fatalf("unexpected content: %+v", o.Content)
	}
	if o.Content.Pickup == nil || o.Content.Pickup.Lat != 41.3 {
		t.Fatalf("expected pickup location, got %+v", o.Content.Pickup)
	}
	if o.Creator == nil || o.Creator.TelegramID != 555 || o.Creator.Phone != "+998901234567" {
		t.Fatalf("unexpected creator: %+v", o.Creator)
	}
	if o.HasDriver() {
		t.Fatalf("expected no driver")
	}
}

func TestParseDeliveryAndRouteFallback(t *testing.T) {
	payload := `{
		"id": "9",
		"status": "started",
		"content_type_name": "passengerpost",
		"driver": 3,
		"driver_details": {"id": 3, "telegram_id": 777, "language": "en"},
		"content_object": {
			"price": 50000.7,
			"route": {"from_city": {"title": "bukhara"}, "to_city": {"title": "navoi"}}
		}
	}`
	o, err := Parse([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !o.IsDelivery() {
		t.Fatalf("expected delivery content")
	}
	if o.FromCity != "bukhara" || o.ToCity != "navoi" {
		t.Fatalf("route fallback failed: %q -> %q", o.FromCity, o.ToCity)
	}
	if o.Content.Price.Amount != 50000 {
		t.Fatalf("price should truncate, got %d", o.Content.Price.Amount)
	}
	if o.Content.Passengers != 1 {
		t.Fatalf("passenger default = %d, want 1", o.Content.Passengers)
	}
	if o.Driver == nil || o.Driver.TelegramID != 777 || o.AssignedDriverID() != 3 {
		t.Fatalf("unexpected driver: %+v", o.Driver)
	}
}

func TestParseAcceptsLargestFare(t *testing.T) {
	o, err := Parse([]byte(`{"id":1,"status":"created","content_object":{"price":9.2e18}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if o.Content.Price.Amount <= 0 {
		t.Fatalf("price overflowed: %d", o.Content.Price.Amount)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := map[string]struct {
		payload string
		field   string
	}{
		"not json":       {`{"id":`, ""},
		"missing id":     {`{"status":"created","content_object":{"price":1}}`, "id"},
		"unknown status": {`{"id":1,"status":"flying","content_object":{"price":1}}`, "status"},
		"no content":     {`{"id":1,"status":"created"}`, "content_object"},
		"no price":       {`{"id":1,"status":"created","content_object":{}}`, "content_object.price"},
		"bad price":      {`{"id":1,"status":"created","content_object":{"price":"abc"}}`, ""},
		"negative price": {`{"id":1,"status":"created","content_object":{"price":-5}}`, "content_object.price"},
		"zero riders":    {`{"id":1,"status":"created","content_object":{"price":5,"passenger":0}}`, "content_object.passenger"},
		"missing status": {`{"id":32,"content_object":{"price":1000}}`, "status"},
		"blank status":   {`{"id":32,"status":"  ","content_object":{"price":1000}}`, "status"},
		"NaN price":      {`{"id":1,"status":"created","content_object":{"price":"NaN"}}`, "content_object.price"},
		"Inf price":      {`{"id":1,"status":"created","content_object":{"price":"Inf"}}`, "content_object.price"},
		"-Inf price":     {`{"id":1,"status":"created","content_object":{"price":"-Inf"}}`, "content_object.price"},
		"huge price":     {`{"id":1,"status":"created","content_object":{"price":1e30}}`, "content_object.price"},
		"huge id":        {`{"id":"1e30","status":"created","content_object":{"price":1}}`, "id"},
		"NaN id":         {`{"id":"NaN","status":"created","content_object":{"price":1}}`, "id"},
		"huge riders":    {`{"id":1,"status":"created","content_object":{"price":5,"passenger":"Inf"}}`, "content_object.passenger"},
		"huge driver":    {`{"id":1,"status":"created","driver":9.3e18,"content_object":{"price":5}}`, "driver"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.payload))
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if tc.field != "" && perr.Field != tc.field {
				t.Fatalf("field = %q, want %q", perr.Field, tc.field)
			}
		})
	}
}

type memBackend struct {
	mu       sync.Mutex
	orders   map[types.ID]*Order
	assigned map[types.ID]types.ID
	updates  []Status
	failNext error
}

func newMemBackend(orders ...*Order) *memBackend {
	b := &memBackend{orders: map[types.ID]*Order{}, assigned: map[types.ID]types.ID{}}
	for _, o := range orders {
		b.orders[o.ID] = o
	}
	return b
}

func (m *memBackend) GetOrder(_ context.Context, id types.ID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memBackend) UpdateOrderStatus(_ context.Context, id types.ID, status Status) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return "", err
	}
	m.orders[id].Status = status
	m.updates = append(m.updates, status)
	return status, nil
}

func (m *memBackend) AssignDriver(_ context.Context, id types.ID, driverID types.ID) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.Status = StatusAssigned
	d := driverID
	o.DriverID = &d
	m.assigned[id] = driverID
	return StatusAssigned, nil
}

func TestOrderFlowHappyPath(t *testing.T) {
	backend := newMemBackend(&Order{ID: 1, Status: StatusCreated})
	svc := NewService(backend)
	ctx := context.Background()

	o, err := svc.Accept(ctx, AcceptCommand{OrderID: 1, DriverID: 10})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if o.Status != StatusAssigned || o.AssignedDriverID() != 10 {
		t.Fatalf("unexpected order after accept: %+v", o)
	}
	steps := []func(context.Context, ProgressCommand) (*Order, error){svc.Arrive, svc.PickUp, svc.Finish}
	for _, step := range steps {
		if _, err := step(ctx, ProgressCommand{OrderID: 1, DriverID: 10}); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	want := []Status{StatusArrived, StatusStarted, StatusEnded}
	if len(backend.updates) != len(want) {
		t.Fatalf("updates = %v, want %v", backend.updates, want)
	}
	for i := range want {
		if backend.updates[i] != want[i] {
			t.Fatalf("updates = %v, want %v", backend.updates, want)
		}
	}
}

func TestAcceptTakenOrder(t *testing.T) {
	other := types.ID(99)
	backend := newMemBackend(
		&Order{ID: 1, Status: StatusCreated, DriverID: &other},
		&Order{ID: 2, Status: StatusCanceled},
	)
	svc := NewService(backend)
	for _, id := range []types.ID{1, 2} {
		if _, err := svc.Accept(context.Background(), AcceptCommand{OrderID: id, DriverID: 10}); !errors.Is(err, ErrConflict) {
			t.Fatalf("order %d: expected ErrConflict, got %v", id, err)
		}
	}
	if len(backend.assigned) != 0 {
		t.Fatalf("no assignment expected, got %v", backend.assigned)
	}
}

func TestProgressInvalidRequests(t *testing.T) {
	driver := types.ID(10)
	backend := newMemBackend(
		&Order{ID: 1, Status: StatusCreated},
		&Order{ID: 2, Status: StatusAssigned, DriverID: &driver},
		&Order{ID: 3, Status: StatusStarted, DriverID: &driver},
	)
	svc := NewService(backend)
	ctx := context.Background()

	if _, err := svc.PickUp(ctx, ProgressCommand{OrderID: 1}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("pick up unassigned: expected ErrInvalidState, got %v", err)
	}
	if _, err := svc.Arrive(ctx, ProgressCommand{OrderID: 2, DriverID: 11}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign driver: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Arrive(ctx, ProgressCommand{OrderID: 404}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing order: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Finish(ctx, ProgressCommand{}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("zero id: expected ErrBadRequest, got %v", err)
	}
	// pressing "picked up" twice is harmless
	if _, err := svc.PickUp(ctx, ProgressCommand{OrderID: 3, DriverID: 10}); err != nil {
		t.Fatalf("repeat pick up: %v", err)
	}
	if len(backend.updates) != 0 {
		t.Fatalf("no backend updates expected, got %v", backend.updates)
	}

	backend.failNext = errors.New("backend down")
	if _, err := svc.Arrive(ctx, ProgressCommand{OrderID: 2, DriverID: 10}); err == nil {
		t.Fatalf("expected backend error")
	}
}
