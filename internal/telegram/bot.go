// README: Telegram Bot API client; implements the chat transport used by the dispatch queue and the bot router.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"driverbot/internal/types"
)

var ErrUnsupportedMarkup = errors.New("unsupported reply markup")

// API is the subset of *tgbotapi.BotAPI the client needs.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api    API
	logger *slog.Logger
}

func New(token string, debug bool, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	api.Debug = debug
	b := NewWithAPI(api, logger)
	b.logger.Info("telegram bot authorized", "username", api.Self.UserName)
	return b, nil
}

func NewWithAPI(api API, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{api: api, logger: logger}
}

// call runs fn unless ctx is already done and returns early when ctx ends first.
// The underlying HTTP request is not cancellable; its result is discarded.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-done:
		return r.v, r.err
	}
}

// Send delivers an HTML text message. markup may be nil, an inline keyboard,
// a reply keyboard or a keyboard removal.
func (b *Bot) Send(ctx context.Context, chatID types.ChatID, text string, markup any) error {
	msg := tgbotapi.NewMessage(int64(chatID), text)
	msg.ParseMode = tgbotapi.ModeHTML
	switch m := markup.(type) {
	case nil:
	case tgbotapi.InlineKeyboardMarkup, tgbotapi.ReplyKeyboardMarkup, tgbotapi.ReplyKeyboardRemove:
		msg.ReplyMarkup = m
	case *tgbotapi.InlineKeyboardMarkup:
		if m != nil {
			msg.ReplyMarkup = *m
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedMarkup, markup)
	}
	_, err := call(ctx, func() (tgbotapi.Message, error) { return b.api.Send(msg) })
	return err
}

// Edit replaces the text and inline keyboard of a sent message.
func (b *Bot) Edit(ctx context.Context, chatID types.ChatID, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(int64(chatID), messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = markup
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return b.api.Request(edit) })
	return err
}

func (b *Bot) Delete(ctx context.Context, chatID types.ChatID, messageID int) error {
	del := tgbotapi.NewDeleteMessage(int64(chatID), messageID)
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return b.api.Request(del) })
	return err
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return b.api.Request(cb) })
	return err
}

func (b *Bot) SendLocation(ctx context.Context, chatID types.ChatID, lat, lng float64) error {
	loc := tgbotapi.NewLocation(int64(chatID), lat, lng)
	_, err := call(ctx, func() (tgbotapi.Message, error) { return b.api.Send(loc) })
	return err
}

// Invoice is a single-item payment request.
type Invoice struct {
	ChatID        types.ChatID
	Title         string
	Description   string
	Payload       string
	ProviderToken string
	Currency      string
	Label         string
	// Amount in minor units as Telegram expects (sum * 100).
	Amount int
	Markup *tgbotapi.InlineKeyboardMarkup
}

func (b *Bot) SendInvoice(ctx context.Context, inv Invoice) error {
	cfg := tgbotapi.NewInvoice(int64(inv.ChatID), inv.Title, inv.Description, inv.Payload,
		inv.ProviderToken, "", inv.Currency, []tgbotapi.LabeledPrice{{Label: inv.Label, Amount: inv.Amount}})
	cfg.SuggestedTipAmounts = []int{}
	if inv.Markup != nil {
		cfg.ReplyMarkup = inv.Markup
	}
	_, err := call(ctx, func() (tgbotapi.Message, error) { return b.api.Send(cfg) })
	return err
}

func (b *Bot) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errMsg string) error {
	cfg := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: queryID, OK: ok, ErrorMessage: errMsg}
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return b.api.Request(cfg) })
	return err
}

// Poll receives updates by long polling until ctx is done.
func (b *Bot) Poll(ctx context.Context, handle func(context.Context, tgbotapi.Update)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram polling stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			handle(ctx, upd)
		}
	}
}
