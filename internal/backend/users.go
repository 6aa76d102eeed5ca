// README: Chat user (client) endpoints.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"driverbot/internal/modules/driver"
	"driverbot/internal/types"
)

type userDTO struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	TelegramID int64  `json:"telegram_id"`
	FullName   string `json:"full_name"`
	Username   string `json:"username"`
	Language   string `json:"language"`
	Phone      string `json:"phone"`
	IsBanned   bool   `json:"is_banned"`
}

func (u userDTO) user() *driver.User {
	id := u.ID
	if id == 0 {
		id = u.UserID
	}
	return &driver.User{
		ID:       types.ID(id),
		ChatID:   types.ChatID(u.TelegramID),
		FullName: u.FullName,
		Username: u.Username,
		Language: u.Language,
		Phone:    u.Phone,
		IsBanned: u.IsBanned,
	}
}

func (c *Client) UserByChatID(ctx context.Context, chatID types.ChatID) (*driver.User, error) {
	var u userDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/clients/by-telegram-id/%d/", chatID), nil, nil, &u); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, driver.ErrUserNotFound
		}
		return nil, err
	}
	return u.user(), nil
}

func (c *Client) CreateUser(ctx context.Context, in driver.User) (*driver.User, error) {
	body := map[string]any{
		"telegram_id": in.ChatID,
		"full_name":   in.FullName,
		"language":    in.Language,
	}
	if in.Username != "" {
		body["username"] = in.Username
	}
	if in.Phone != "" {
		body["phone"] = in.Phone
	}
	var u userDTO
	if err := c.do(ctx, http.MethodPost, "/clients/", nil, body, &u); err != nil {
		return nil, err
	}
	return u.user(), nil
}

func (c *Client) UpdateUser(ctx context.Context, id types.ID, patch driver.UserPatch) (*driver.User, error) {
	body := map[string]any{}
	if patch.Language != nil {
		body["language"] = *patch.Language
	}
	if patch.Phone != nil {
		body["phone"] = *patch.Phone
	}
	var u userDTO
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/clients/%d/", id), nil, body, &u); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, driver.ErrUserNotFound
		}
		return nil, err
	}
	return u.user(), nil
}
