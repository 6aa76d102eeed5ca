// README: Driver profile, chat user and the backend contract for both.
package driver

import (
	"context"
	"errors"

	"driverbot/internal/types"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type Profile struct {
	ID           types.ID
	ChatID       types.ChatID
	FullName     string
	Status       string
	FromLocation string
	ToLocation   string
	CarClass     string
	// Amount is the driver balance in sum.
	Amount int64
}

func (p *Profile) Online() bool {
	return p.Status == StatusOnline
}

// User is the chat account behind a driver.
type User struct {
	ID       types.ID
	ChatID   types.ChatID
	FullName string
	Username string
	Language string
	Phone    string
	IsBanned bool
}

// DriverPatch holds the fields to change; nil fields are left alone.
type DriverPatch struct {
	Status       *string
	FromLocation *string
	ToLocation   *string
	Amount       *int64
}

type UserPatch struct {
	Language *string
	Phone    *string
}

// Backend is the driver and user side of the backend REST API.
type Backend interface {
	DriverByChatID(ctx context.Context, chatID types.ChatID) (*Profile, error)
	UpdateDriver(ctx context.Context, id types.ID, patch DriverPatch) (*Profile, error)
	CreateTransaction(ctx context.Context, driverID types.ID, amount int64) error
	UserByChatID(ctx context.Context, chatID types.ChatID) (*User, error)
	CreateUser(ctx context.Context, u User) (*User, error)
	UpdateUser(ctx context.Context, id types.ID, patch UserPatch) (*User, error)
}

var (
	ErrNotFound      = errors.New("driver not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrBanned        = errors.New("user is banned")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrBelowMinimum  = errors.New("amount below minimum top-up")
	ErrAboveMaximum  = errors.New("amount above maximum top-up")
	ErrBadPayload    = errors.New("malformed invoice payload")
)
