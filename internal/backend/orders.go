// README: Order endpoints; implements order.Backend.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"driverbot/internal/modules/order"
	"driverbot/internal/types"
)

type statusResponse struct {
	Status string `json:"status"`
}

func (c *Client) GetOrder(ctx context.Context, id types.ID) (*order.Order, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d/", id), nil, nil, &raw); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, err
	}
	return order.Parse(raw)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id types.ID, status order.Status) (order.Status, error) {
	var resp statusResponse
	body := map[string]any{"status": status}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/orders/%d/", id), nil, body, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", order.ErrNotFound
		}
		return "", err
	}
	return order.Status(resp.Status), nil
}

func (c *Client) AssignDriver(ctx context.Context, id types.ID, driverID types.ID) (order.Status, error) {
	var resp statusResponse
	body := map[string]any{"driver": driverID, "status": order.StatusAssigned}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/orders/%d/", id), nil, body, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", order.ErrNotFound
		}
		return "", err
	}
	return order.Status(resp.Status), nil
}
