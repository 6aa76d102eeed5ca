// README: Driver directory and driver profile endpoints.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"driverbot/internal/modules/driver"
	"driverbot/internal/modules/matching"
	"driverbot/internal/types"
)

type driverInfoDTO struct {
	TelegramID int64  `json:"telegram_id"`
	FullName   string `json:"full_name"`
	Language   string `json:"language"`
}

type carDTO struct {
	CarClass string `json:"car_class"`
}

type driverDTO struct {
	ID           int64          `json:"id"`
	TelegramID   int64          `json:"telegram_id"`
	DriverInfo   *driverInfoDTO `json:"driver_info"`
	FromLocation string         `json:"from_location"`
	ToLocation   string         `json:"to_location"`
	Status       string         `json:"status"`
	Amount       float64        `json:"amount"`
	IsBusy       bool           `json:"is_busy"`
	LatestCar    *carDTO        `json:"latest_car"`
	Car          *carDTO        `json:"car"`
}

func (d driverDTO) chatID() types.ChatID {
	if d.DriverInfo != nil && d.DriverInfo.TelegramID != 0 {
		return types.ChatID(d.DriverInfo.TelegramID)
	}
	return types.ChatID(d.TelegramID)
}

func (d driverDTO) carClass() string {
	if d.LatestCar != nil && d.LatestCar.CarClass != "" {
		return d.LatestCar.CarClass
	}
	if d.Car != nil {
		return d.Car.CarClass
	}
	return ""
}

func (d driverDTO) candidate() matching.Candidate {
	c := matching.Candidate{
		ID:           types.ID(d.ID),
		ChatID:       d.chatID(),
		Status:       d.Status,
		FromLocation: d.FromLocation,
		ToLocation:   d.ToLocation,
		CarClass:     d.carClass(),
		Amount:       int64(d.Amount),
		Busy:         d.IsBusy,
	}
	if d.DriverInfo != nil {
		c.FullName = d.DriverInfo.FullName
		c.Language = d.DriverInfo.Language
	}
	return c
}

func (d driverDTO) profile() *driver.Profile {
	p := &driver.Profile{
		ID:           types.ID(d.ID),
		ChatID:       d.chatID(),
		Status:       d.Status,
		FromLocation: d.FromLocation,
		ToLocation:   d.ToLocation,
		CarClass:     d.carClass(),
		Amount:       int64(d.Amount),
	}
	if d.DriverInfo != nil {
		p.FullName = d.DriverInfo.FullName
	}
	return p
}

// driverList accepts both a paginated {"results": [...]} body and a bare list.
type driverList []driverDTO

func (l *driverList) UnmarshalJSON(data []byte) error {
	var page struct {
		Results []driverDTO `json:"results"`
	}
	if len(data) > 0 && data[0] == '[' {
		var items []driverDTO
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return err
	}
	*l = page.Results
	return nil
}

func filterQuery(f matching.DriverFilter) url.Values {
	q := url.Values{}
	if f.FromLocation != "" {
		q.Set("from_location", f.FromLocation)
	}
	if f.ToLocation != "" {
		q.Set("to_location", f.ToLocation)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	q.Set("min_amount", strconv.FormatInt(f.MinAmount, 10))
	if f.Ordering != "" {
		q.Set("ordering", f.Ordering)
	}
	if f.ExcludeBusy {
		q.Set("exclude_busy", "true")
	}
	for _, cls := range f.CarClasses {
		q.Add("car_class", cls)
	}
	return q
}

// ListDrivers implements matching.Directory.
func (c *Client) ListDrivers(ctx context.Context, f matching.DriverFilter) ([]matching.Candidate, error) {
	var list driverList
	if err := c.do(ctx, http.MethodGet, "/drivers/", filterQuery(f), nil, &list); err != nil {
		return nil, err
	}
	out := make([]matching.Candidate, 0, len(list))
	for _, d := range list {
		out = append(out, d.candidate())
	}
	return out, nil
}

func (c *Client) DriverByChatID(ctx context.Context, chatID types.ChatID) (*driver.Profile, error) {
	var d driverDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/drivers/by-telegram-id/%d/", chatID), nil, nil, &d); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, driver.ErrNotFound
		}
		return nil, err
	}
	return d.profile(), nil
}

func (c *Client) UpdateDriver(ctx context.Context, id types.ID, patch driver.DriverPatch) (*driver.Profile, error) {
	body := map[string]any{}
	if patch.Status != nil {
		body["status"] = *patch.Status
	}
	if patch.FromLocation != nil {
		body["from_location"] = *patch.FromLocation
	}
	if patch.ToLocation != nil {
		body["to_location"] = *patch.ToLocation
	}
	if patch.Amount != nil {
		body["amount"] = *patch.Amount
	}
	var d driverDTO
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/drivers/%d/", id), nil, body, &d); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, driver.ErrNotFound
		}
		return nil, err
	}
	return d.profile(), nil
}

func (c *Client) CreateTransaction(ctx context.Context, driverID types.ID, amount int64) error {
	body := map[string]any{"driver": driverID, "amount": amount}
	return c.do(ctx, http.MethodPost, "/transactions/", nil, body, nil)
}
