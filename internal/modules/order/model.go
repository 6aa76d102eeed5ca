// README: Order snapshot and status definitions, plus the dispatch action each status triggers.
package order

import (
	"driverbot/internal/types"
)

type Status string

const (
	StatusCreated  Status = "created"
	StatusSearched Status = "searched"
	StatusAssigned Status = "assigned"
	StatusArrived  Status = "arrived"
	StatusStarted  Status = "started"
	StatusEnded    Status = "ended"
	StatusCanceled Status = "canceled"
	StatusRejected Status = "rejected"
)

var knownStatuses = map[Status]struct{}{
	StatusCreated:  {},
	StatusSearched: {},
	StatusAssigned: {},
	StatusArrived:  {},
	StatusStarted:  {},
	StatusEnded:    {},
	StatusCanceled: {},
	StatusRejected: {},
}

func (s Status) Valid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// Terminal statuses have no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusCanceled || s == StatusRejected
}

// AllowedTransitions represents the order lifecycle as code. The backend owns
// the actual status; these edges are what a driver action may request.
var AllowedTransitions = map[Status][]Status{
	StatusCreated:  {StatusSearched, StatusAssigned, StatusCanceled, StatusRejected},
	StatusSearched: {StatusAssigned, StatusCanceled, StatusRejected},
	StatusAssigned: {StatusArrived, StatusCanceled},
	StatusArrived:  {StatusStarted, StatusCanceled},
	StatusStarted:  {StatusEnded},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Action is what the dispatcher does with an inbound order snapshot.
type Action string

const (
	ActionNone     Action = "none"
	ActionFanOut   Action = "fan_out"
	ActionSafeTrip Action = "safe_trip"
)

func DispatchActionFor(s Status) Action {
	switch s {
	case StatusCreated:
		return ActionFanOut
	case StatusStarted:
		return ActionSafeTrip
	default:
		return ActionNone
	}
}

type ContentType string

const (
	ContentRide     ContentType = "travel"
	ContentDelivery ContentType = "delivery"
)

type Passenger struct {
	ID         types.ID
	TelegramID types.ChatID
	FullName   string
	Phone      string
	Language   string
	TotalRides int
	Rating     *float64
}

type DriverDetails struct {
	ID         types.ID
	TelegramID types.ChatID
	FullName   string
	Language   string
}

type Location struct {
	Lat float64
	Lng float64
}

type Content struct {
	Price       types.Money
	TravelClass string
	Passengers  int
	HasWoman    bool
	Comment     string
	StartTime   string
	Pickup      *Location
}

// Order is a read-only snapshot as delivered by the backend.
type Order struct {
	ID          types.ID
	UserID      types.ID
	Creator     *Passenger
	DriverID    *types.ID
	Driver      *DriverDetails
	Status      Status
	ContentType ContentType
	Content     Content
	FromCity    string
	ToCity      string
}

func (o *Order) IsDelivery() bool {
	return o.ContentType == ContentDelivery
}

// HasDriver reports whether the backend already assigned someone.
func (o *Order) HasDriver() bool {
	return o.DriverID != nil || (o.Driver != nil && o.Driver.ID != 0)
}

// AssignedDriverID returns the assigned driver id, 0 when unassigned.
func (o *Order) AssignedDriverID() types.ID {
	if o.DriverID != nil {
		return *o.DriverID
	}
	if o.Driver != nil {
		return o.Driver.ID
	}
	return 0
}
