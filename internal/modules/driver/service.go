// README: Driver service: language lookup with cache, online status, route direction, balance.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"driverbot/internal/i18n"
	"driverbot/internal/types"
)

type Options struct {
	DefaultLanguage  string
	LanguageCacheTTL time.Duration
	Payments         PaymentRules
	Logger           *slog.Logger
}

type Service struct {
	backend     Backend
	langs       *cache.Cache
	defaultLang string
	payments    PaymentRules
	logger      *slog.Logger
}

func NewService(backend Backend, opts Options) *Service {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = i18n.DefaultLanguage
	}
	if opts.LanguageCacheTTL <= 0 {
		opts.LanguageCacheTTL = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		backend:     backend,
		langs:       cache.New(opts.LanguageCacheTTL, 2*opts.LanguageCacheTTL),
		defaultLang: opts.DefaultLanguage,
		payments:    opts.Payments.normalized(),
		logger:      opts.Logger,
	}
}

func (s *Service) Payments() PaymentRules {
	return s.payments
}

func (s *Service) DefaultLanguage() string {
	return s.defaultLang
}

// Language returns the chat's language. Users without a language get the default.
func (s *Service) Language(ctx context.Context, chatID types.ChatID) (string, error) {
	key := chatID.String()
	if v, ok := s.langs.Get(key); ok {
		return v.(string), nil
	}
	u, err := s.backend.UserByChatID(ctx, chatID)
	if err != nil {
		return "", err
	}
	lang := i18n.Normalize(u.Language)
	if lang == "" {
		lang = s.defaultLang
	}
	s.langs.SetDefault(key, lang)
	return lang, nil
}

// LanguageOrDefault never fails; lookup errors are logged.
func (s *Service) LanguageOrDefault(ctx context.Context, chatID types.ChatID) string {
	lang, err := s.Language(ctx, chatID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.Warn("language lookup failed", "chat_id", chatID, "error", err)
		}
		return s.defaultLang
	}
	return lang
}

func (s *Service) SetLanguage(ctx context.Context, chatID types.ChatID, lang string) error {
	lang = i18n.Normalize(lang)
	if lang == "" {
		return fmt.Errorf("empty language")
	}
	u, err := s.backend.UserByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	if _, err := s.backend.UpdateUser(ctx, u.ID, UserPatch{Language: &lang}); err != nil {
		return fmt.Errorf("update language: %w", err)
	}
	s.langs.SetDefault(chatID.String(), lang)
	return nil
}

// EnsureUser registers the chat user on first contact. created reports a new account.
func (s *Service) EnsureUser(ctx context.Context, u User) (*User, bool, error) {
	existing, err := s.backend.UserByChatID(ctx, u.ChatID)
	if err == nil {
		if existing.IsBanned {
			return existing, false, ErrBanned
		}
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}
	if u.Language == "" {
		u.Language = s.defaultLang
	}
	created, err := s.backend.CreateUser(ctx, u)
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", "chat_id", u.ChatID)
	return created, true, nil
}

func (s *Service) Profile(ctx context.Context, chatID types.ChatID) (*Profile, error) {
	return s.backend.DriverByChatID(ctx, chatID)
}

func (s *Service) SetOnline(ctx context.Context, chatID types.ChatID, online bool) (*Profile, error) {
	p, err := s.backend.DriverByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	status := StatusOffline
	if online {
		status = StatusOnline
	}
	if p.Status == status {
		return p, nil
	}
	updated, err := s.backend.UpdateDriver(ctx, p.ID, DriverPatch{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.logger.Info("driver status changed", "driver_id", p.ID, "status", status)
	return updated, nil
}

// SwapDirection reverses the driver's route.
func (s *Service) SwapDirection(ctx context.Context, chatID types.ChatID) (*Profile, error) {
	p, err := s.backend.DriverByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	from, to := p.ToLocation, p.FromLocation
	updated, err := s.backend.UpdateDriver(ctx, p.ID, DriverPatch{FromLocation: &from, ToLocation: &to})
	if err != nil {
		return nil, fmt.Errorf("swap direction: %w", err)
	}
	return updated, nil
}

// CreditBalance records a transaction and raises the driver's balance by amount.
func (s *Service) CreditBalance(ctx context.Context, chatID types.ChatID, amount int64) (*Profile, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	p, err := s.backend.DriverByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.backend.CreateTransaction(ctx, p.ID, amount); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	total := p.Amount + amount
	updated, err := s.backend.UpdateDriver(ctx, p.ID, DriverPatch{Amount: &total})
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	s.logger.Info("driver balance credited", "driver_id", p.ID, "amount", amount, "balance", total)
	return updated, nil
}
