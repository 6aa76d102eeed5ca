// README: Matching service turns an order into a directory query and returns eligible drivers.
package matching

import (
	"context"
	"log/slog"
	"time"

	"driverbot/internal/modules/order"
	"driverbot/internal/modules/pricing"
	"driverbot/internal/types"
)

// Directory lists drivers from the backend.
type Directory interface {
	ListDrivers(ctx context.Context, f DriverFilter) ([]Candidate, error)
}

// DispatchStore remembers which drivers were offered an order.
type DispatchStore interface {
	RecordDispatch(ctx context.Context, orderID types.ID, chatIDs []types.ChatID) error
	WasNotified(ctx context.Context, orderID types.ID, chatID types.ChatID) (bool, error)
	GetDispatchedAt(ctx context.Context, orderID types.ID) (time.Time, bool, error)
}

type Service struct {
	dir        Directory
	store      DispatchStore
	commission pricing.Commission
	logger     *slog.Logger
}

func NewService(dir Directory, store DispatchStore, commission pricing.Commission, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{dir: dir, store: store, commission: commission, logger: logger}
}

func (s *Service) FilterFor(o *order.Order) DriverFilter {
	return DriverFilter{
		FromLocation: o.FromCity,
		ToLocation:   o.ToCity,
		Status:       StatusOnline,
		MinAmount:    s.commission.MinDriverAmount(o.Content.Price),
		Ordering:     OrderingByAmountDesc,
		ExcludeBusy:  true,
		CarClasses:   CarClassesFor(o.Content.TravelClass),
	}
}

// FindCandidates never fails: a directory error is logged and yields no drivers.
func (s *Service) FindCandidates(ctx context.Context, o *order.Order) []Candidate {
	f := s.FilterFor(o)
	found, err := s.dir.ListDrivers(ctx, f)
	if err != nil {
		s.logger.Error("list drivers failed", "order_id", o.ID, "error", err)
		return nil
	}
	out := make([]Candidate, 0, len(found))
	for _, c := range found {
		if !f.Matches(c) {
			s.logger.Debug("candidate filtered out", "order_id", o.ID, "driver_id", c.ID, "status", c.Status, "car_class", c.CarClass)
			continue
		}
		out = append(out, c)
	}
	s.logger.Info("drivers matched", "order_id", o.ID, "found", len(found), "eligible", len(out))
	return out
}

func (s *Service) RecordNotified(ctx context.Context, orderID types.ID, chatIDs []types.ChatID) error {
	if s.store == nil || len(chatIDs) == 0 {
		return nil
	}
	return s.store.RecordDispatch(ctx, orderID, chatIDs)
}

// WasNotified reports whether the driver was offered the order. Without a
// store, or for orders with no record, every driver counts as notified.
func (s *Service) WasNotified(ctx context.Context, orderID types.ID, chatID types.ChatID) (bool, error) {
	if s.store == nil {
		return true, nil
	}
	return s.store.WasNotified(ctx, orderID, chatID)
}

// DispatchedAt returns when the order was first fanned out. found is false
// without a store or when no drivers were notified.
func (s *Service) DispatchedAt(ctx context.Context, orderID types.ID) (at time.Time, found bool, err error) {
	if s.store == nil {
		return time.Time{}, false, nil
	}
	return s.store.GetDispatchedAt(ctx, orderID)
}
