// README: Order service validates driver actions against the lifecycle before asking the backend to apply them.
package order

import (
	"context"
	"errors"
	"fmt"

	"driverbot/internal/types"
)

// Backend is the order side of the backend REST API.
type Backend interface {
	GetOrder(ctx context.Context, id types.ID) (*Order, error)
	UpdateOrderStatus(ctx context.Context, id types.ID, status Status) (Status, error)
	AssignDriver(ctx context.Context, id types.ID, driverID types.ID) (Status, error)
}

type Service struct {
	backend Backend
}

func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("order not found")
	ErrConflict     = errors.New("order taken by other driver")
	ErrForbidden    = errors.New("order assigned to another driver")
	ErrBadRequest   = errors.New("bad request")
)

type AcceptCommand struct {
	OrderID  types.ID
	DriverID types.ID
}

// ProgressCommand moves an assigned order forward on behalf of its driver.
// DriverID 0 skips the ownership check.
type ProgressCommand struct {
	OrderID  types.ID
	DriverID types.ID
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	if id <= 0 {
		return nil, ErrBadRequest
	}
	return s.backend.GetOrder(ctx, id)
}

// Accept assigns the driver when the order is still open. The returned
// snapshot is the one read before assignment, with the driver filled in.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Order, error) {
	if cmd.OrderID <= 0 || cmd.DriverID <= 0 {
		return nil, ErrBadRequest
	}
	o, err := s.backend.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.HasDriver() || (o.Status != StatusCreated && o.Status != StatusSearched) {
		return o, ErrConflict
	}
	status, err := s.backend.AssignDriver(ctx, cmd.OrderID, cmd.DriverID)
	if err != nil {
		return o, fmt.Errorf("assign driver: %w", err)
	}
	if status != StatusAssigned {
		return o, ErrConflict
	}
	o.Status = StatusAssigned
	id := cmd.DriverID
	o.DriverID = &id
	return o, nil
}

func (s *Service) Arrive(ctx context.Context, cmd ProgressCommand) (*Order, error) {
	return s.advance(ctx, cmd, StatusArrived)
}

func (s *Service) PickUp(ctx context.Context, cmd ProgressCommand) (*Order, error) {
	return s.advance(ctx, cmd, StatusStarted)
}

func (s *Service) Finish(ctx context.Context, cmd ProgressCommand) (*Order, error) {
	return s.advance(ctx, cmd, StatusEnded)
}

func (s *Service) advance(ctx context.Context, cmd ProgressCommand, to Status) (*Order, error) {
	if cmd.OrderID <= 0 {
		return nil, ErrBadRequest
	}
	o, err := s.backend.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if cmd.DriverID != 0 && o.HasDriver() && o.AssignedDriverID() != cmd.DriverID {
		return o, ErrForbidden
	}
	if o.Status == to {
		// Repeated button press; already applied.
		return o, nil
	}
	if !CanTransition(o.Status, to) {
		return o, ErrInvalidState
	}
	status, err := s.backend.UpdateOrderStatus(ctx, cmd.OrderID, to)
	if err != nil {
		return o, fmt.Errorf("update status: %w", err)
	}
	if status != "" && status != to {
		return o, ErrConflict
	}
	o.Status = to
	return o, nil
}
