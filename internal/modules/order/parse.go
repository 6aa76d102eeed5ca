// README: Strict decoding of backend order payloads into Order snapshots.
package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"driverbot/internal/types"
)

// ParseError reports which field of an order payload could not be decoded.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse order: %v", e.Err)
	}
	return fmt.Sprintf("parse order: %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// number accepts a JSON number or a numeric string; the backend emits both.
type number struct {
	set   bool
	value float64
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = number{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = number{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = number{set: true, value: v}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = number{set: true, value: v}
	return nil
}

func (n number) int64() int64 {
	return int64(math.Trunc(n.value))
}

// fits reports whether an unset or finite value converts to int64 without
// overflow. NaN fails every comparison.
func (n number) fits() bool {
	if !n.set {
		return true
	}
	return n.value >= math.MinInt64 && n.value < math.MaxInt64
}

var errOutOfRange = errors.New("not finite or out of range")

// checkRange rejects NaN, infinities and values beyond int64.
func checkRange(fields map[string]number) error {
	for field, n := range fields {
		if !n.fits() {
			return &ParseError{Field: field, Err: errOutOfRange}
		}
	}
	return nil
}

type cityDTO struct {
	ID        number            `json:"city_id"`
	Title     string            `json:"title"`
	Translate map[string]string `json:"translate"`
}

type routeDTO struct {
	FromCity *cityDTO `json:"from_city"`
	ToCity   *cityDTO `json:"to_city"`
}

type pointDTO struct {
	Location *struct {
		Latitude  number `json:"latitude"`
		Longitude number `json:"longitude"`
	} `json:"location"`
}

type contentDTO struct {
	Price        number    `json:"price"`
	TravelClass  string    `json:"travel_class"`
	Passenger    *number   `json:"passenger"`
	HasWoman     bool      `json:"has_woman"`
	Comment      *string   `json:"comment"`
	StartTime    *string   `json:"start_time"`
	Route        *routeDTO `json:"route"`
	FromLocation *pointDTO `json:"from_location"`
}

type passengerDTO struct {
	ID         number   `json:"id"`
	TelegramID number   `json:"telegram_id"`
	FullName   string   `json:"full_name"`
	Phone      *string  `json:"phone"`
	Language   string   `json:"language"`
	TotalRides number   `json:"total_rides"`
	Rating     *float64 `json:"rating"`
}

type driverDTO struct {
	ID         number `json:"id"`
	TelegramID number `json:"telegram_id"`
	FullName   string `json:"full_name"`
	Language   string `json:"language"`
}

type orderDTO struct {
	ID              number        `json:"id"`
	User            number        `json:"user"`
	Creator         *passengerDTO `json:"creator"`
	Driver          number        `json:"driver"`
	DriverDetails   *driverDTO    `json:"driver_details"`
	Status          string        `json:"status"`
	ContentTypeName string        `json:"content_type_name"`
	ContentObject   *contentDTO   `json:"content_object"`
	FromCity        string        `json:"from_city"`
	ToCity          string        `json:"to_city"`
}

// Parse decodes an order payload. It rejects payloads without an id, with a
// missing or unknown status, without content, with a negative or non-numeric
// price, or with any number that is not finite or does not fit int64.
func Parse(data []byte) (*Order, error) {
	var dto orderDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, &ParseError{Err: err}
	}
	if !dto.ID.fits() {
		return nil, &ParseError{Field: "id", Err: errOutOfRange}
	}
	if !dto.ID.set || dto.ID.int64() <= 0 {
		return nil, &ParseError{Field: "id", Err: fmt.Errorf("missing or invalid")}
	}

	status := Status(strings.ToLower(strings.TrimSpace(dto.Status)))
	if status == "" {
		return nil, &ParseError{Field: "status", Err: errors.New("missing")}
	}
	if !status.Valid() {
		return nil, &ParseError{Field: "status", Err: fmt.Errorf("unknown status %q", dto.Status)}
	}

	if dto.ContentObject == nil {
		return nil, &ParseError{Field: "content_object", Err: fmt.Errorf("missing")}
	}
	c := dto.ContentObject
	if !c.Price.set {
		return nil, &ParseError{Field: "content_object.price", Err: fmt.Errorf("missing")}
	}
	if !c.Price.fits() {
		return nil, &ParseError{Field: "content_object.price", Err: errOutOfRange}
	}
	if c.Price.value < 0 {
		return nil, &ParseError{Field: "content_object.price", Err: fmt.Errorf("negative")}
	}
	ranged := map[string]number{
		"user":   dto.User,
		"driver": dto.Driver,
	}
	if c.Passenger != nil {
		ranged["content_object.passenger"] = *c.Passenger
	}
	if p := dto.Creator; p != nil {
		ranged["creator.id"] = p.ID
		ranged["creator.telegram_id"] = p.TelegramID
		ranged["creator.total_rides"] = p.TotalRides
	}
	if d := dto.DriverDetails; d != nil {
		ranged["driver_details.id"] = d.ID
		ranged["driver_details.telegram_id"] = d.TelegramID
	}
	if err := checkRange(ranged); err != nil {
		return nil, err
	}

	o := &Order{
		ID:          types.ID(dto.ID.int64()),
		UserID:      types.ID(dto.User.int64()),
		Status:      status,
		ContentType: contentTypeOf(dto.ContentTypeName),
		Content: Content{
			Price:       types.NewMoney(c.Price.int64()),
			TravelClass: strings.TrimSpace(c.TravelClass),
			Passengers:  1,
			HasWoman:    c.HasWoman,
		},
		FromCity: strings.TrimSpace(dto.FromCity),
		ToCity:   strings.TrimSpace(dto.ToCity),
	}
	if c.Passenger != nil && c.Passenger.set {
		if c.Passenger.int64() < 1 {
			return nil, &ParseError{Field: "content_object.passenger", Err: fmt.Errorf("must be positive")}
		}
		o.Content.Passengers = int(c.Passenger.int64())
	}
	if c.Comment != nil {
		o.Content.Comment = *c.Comment
	}
	if c.StartTime != nil {
		o.Content.StartTime = *c.StartTime
	}
	if c.FromLocation != nil && c.FromLocation.Location != nil {
		loc := c.FromLocation.Location
		if loc.Latitude.set && loc.Longitude.set {
			o.Content.Pickup = &Location{Lat: loc.Latitude.value, Lng: loc.Longitude.value}
		}
	}
	if c.Route != nil {
		if o.FromCity == "" && c.Route.FromCity != nil {
			o.FromCity = strings.TrimSpace(c.Route.FromCity.Title)
		}
		if o.ToCity == "" && c.Route.ToCity != nil {
			o.ToCity = strings.TrimSpace(c.Route.ToCity.Title)
		}
	}

	if p := dto.Creator; p != nil {
		o.Creator = &Passenger{
			ID:         types.ID(p.ID.int64()),
			TelegramID: types.ChatID(p.TelegramID.int64()),
			FullName:   p.FullName,
			Language:   p.Language,
			TotalRides: int(p.TotalRides.int64()),
			Rating:     p.Rating,
		}
		if p.Phone != nil {
			o.Creator.Phone = *p.Phone
		}
	}
	if dto.Driver.set {
		id := types.ID(dto.Driver.int64())
		o.DriverID = &id
	}
	if d := dto.DriverDetails; d != nil {
		o.Driver = &DriverDetails{
			ID:         types.ID(d.ID.int64()),
			TelegramID: types.ChatID(d.TelegramID.int64()),
			FullName:   d.FullName,
			Language:   d.Language,
		}
	}
	return o, nil
}

func contentTypeOf(name string) ContentType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "passengerpost", "delivery", "post":
		return ContentDelivery
	default:
		return ContentRide
	}
}
