// README: Matching tests (class map, filter building, candidate selection, Redis dispatch record).
package matching

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"driverbot/internal/modules/order"
	"driverbot/internal/modules/pricing"
	"driverbot/internal/types"
)

func TestCarClassesFor(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"economy", []string{"economy"}},
		{"Standard", []string{"standard", "comfort"}},
		{"COMFORT", []string{"comfort"}},
		{"all", nil},
		{"ALL", nil},
		{"", nil},
		{"  ", nil},
		{"business", nil},
	}
	for _, tc := range cases {
		got := CarClassesFor(tc.in)
		if len(got) != len(tc.want) {
			t.Fatalf("CarClassesFor(%q) = %v, want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("CarClassesFor(%q) = %v, want %v", tc.in, got, tc.want)
			}
		}
	}
}

func TestCarClassesForReturnsCopy(t *testing.T) {
	got := CarClassesFor("standard")
	got[0] = "mutated"
	if CarClassesFor("standard")[0] != "standard" {
		t.Fatalf("class map mutated through returned slice")
	}
}

// mockDirectory is an in-memory Directory.
type mockDirectory struct {
	mu      sync.Mutex
	drivers []Candidate
	err     error
	calls   []DriverFilter
}

func (m *mockDirectory) ListDrivers(_ context.Context, f DriverFilter) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, f)
	if m.err != nil {
		return nil, m.err
	}
	cp := make([]Candidate, len(m.drivers))
	copy(cp, m.drivers)
	return cp, nil
}

func newOrder(price int64, class string) *order.Order {
	return &order.Order{
		ID:       1,
		Status:   order.StatusCreated,
		FromCity: "tashkent",
		ToCity:   "samarkand",
		Content:  order.Content{Price: types.NewMoney(price), TravelClass: class, Passengers: 1},
	}
}

func TestFilterFor(t *testing.T) {
	svc := NewService(&mockDirectory{}, nil, pricing.DefaultCommission, nil)

	f := svc.FilterFor(newOrder(100000, "Standard"))
	if f.FromLocation != "tashkent" || f.ToLocation != "samarkand" {
		t.Fatalf("unexpected route: %+v", f)
	}
	if f.Status != StatusOnline || f.Ordering != "-amount" || !f.ExcludeBusy {
		t.Fatalf("unexpected fixed params: %+v", f)
	}
	if f.MinAmount != 5000 {
		t.Fatalf("MinAmount = %d, want 5000", f.MinAmount)
	}
	if len(f.CarClasses) != 2 || f.CarClasses[0] != "standard" || f.CarClasses[1] != "comfort" {
		t.Fatalf("CarClasses = %v", f.CarClasses)
	}

	if f := svc.FilterFor(newOrder(100000, "all")); f.CarClasses != nil {
		t.Fatalf("expected no class filter for all, got %v", f.CarClasses)
	}
}

func TestFindCandidates_FiltersIneligible(t *testing.T) {
	dir := &mockDirectory{drivers: []Candidate{
		{ID: 1, ChatID: 101, Status: "online", CarClass: "comfort"},
		{ID: 2, ChatID: 102, Status: "online", CarClass: "comfort"},
		{ID: 3, ChatID: 103, Status: "offline", CarClass: "comfort"},
		{ID: 4, ChatID: 104, Status: "online", CarClass: "economy"},
		{ID: 5, ChatID: 105, Status: "online", CarClass: "comfort", Busy: true},
	}}
	svc := NewService(dir, nil, pricing.DefaultCommission, nil)

	got := svc.FindCandidates(context.Background(), newOrder(100000, "comfort"))
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("directory order not preserved: %+v", got)
	}
	if len(dir.calls) != 1 {
		t.Fatalf("expected one directory call, got %d", len(dir.calls))
	}
}

func TestFindCandidates_DirectoryError(t *testing.T) {
	dir := &mockDirectory{err: errors.New("backend unavailable")}
	svc := NewService(dir, nil, pricing.DefaultCommission, nil)

	if got := svc.FindCandidates(context.Background(), newOrder(1000, "")); len(got) != 0 {
		t.Fatalf("expected no candidates on error, got %v", got)
	}
}

func TestWasNotifiedWithoutStore(t *testing.T) {
	svc := NewService(&mockDirectory{}, nil, pricing.DefaultCommission, nil)
	ok, err := svc.WasNotified(context.Background(), 1, 2)
	if err != nil || !ok {
		t.Fatalf("expected notified without store, got %v %v", ok, err)
	}
	if err := svc.RecordNotified(context.Background(), 1, []types.ChatID{2}); err != nil {
		t.Fatalf("record without store: %v", err)
	}
	if _, found, err := svc.DispatchedAt(context.Background(), 1); err != nil || found {
		t.Fatalf("expected no dispatch time without store, got %v %v", found, err)
	}
}

func setupRedisStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("DRIVERBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DRIVERBOT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client)
}

func TestStoreDispatchRecord(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()
	orderID := types.ID(time.Now().UnixNano() % 1_000_000_000)
	t.Cleanup(func() {
		store.redis.Del(ctx, notifiedKey(orderID), dispatchedAtKey(orderID))
	})

	ok, err := store.WasNotified(ctx, orderID, 1)
	if err != nil || !ok {
		t.Fatalf("unrecorded order should allow any driver, got %v %v", ok, err)
	}
	if _, found, _ := store.GetDispatchedAt(ctx, orderID); found {
		t.Fatalf("expected no dispatch timestamp yet")
	}

	if err := store.RecordDispatch(ctx, orderID, []types.ChatID{10, 11}); err != nil {
		t.Fatalf("record: %v", err)
	}
	for chat, want := range map[types.ChatID]bool{10: true, 11: true, 12: false} {
		got, err := store.WasNotified(ctx, orderID, chat)
		if err != nil {
			t.Fatalf("was notified: %v", err)
		}
		if got != want {
			t.Fatalf("WasNotified(%d) = %v, want %v", chat, got, want)
		}
	}
	if _, found, err := store.GetDispatchedAt(ctx, orderID); err != nil || !found {
		t.Fatalf("expected dispatch timestamp, got %v %v", found, err)
	}
	ttl, err := store.redis.TTL(ctx, notifiedKey(orderID)).Result()
	if err != nil || ttl <= 0 || ttl > keyTTL {
		t.Fatalf("unexpected ttl %v (%v)", ttl, err)
	}
}
