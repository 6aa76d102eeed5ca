// README: Telegram update router for drivers: start, menu callbacks, order actions, top-ups.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/patrickmn/go-cache"

	"driverbot/internal/modules/dispatch"
	"driverbot/internal/modules/driver"
	"driverbot/internal/modules/order"
	"driverbot/internal/modules/pricing"
	"driverbot/internal/telegram"
	"driverbot/internal/types"
)

// Client is the chat surface the router talks to; *telegram.Bot implements it.
type Client interface {
	Send(ctx context.Context, chatID types.ChatID, text string, markup any) error
	Edit(ctx context.Context, chatID types.ChatID, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	Delete(ctx context.Context, chatID types.ChatID, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	SendLocation(ctx context.Context, chatID types.ChatID, lat, lng float64) error
	SendInvoice(ctx context.Context, inv telegram.Invoice) error
	AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errMsg string) error
}

// Orders applies driver actions; *order.Service implements it.
type Orders interface {
	Accept(ctx context.Context, cmd order.AcceptCommand) (*order.Order, error)
	Arrive(ctx context.Context, cmd order.ProgressCommand) (*order.Order, error)
	PickUp(ctx context.Context, cmd order.ProgressCommand) (*order.Order, error)
	Finish(ctx context.Context, cmd order.ProgressCommand) (*order.Order, error)
}

// Drivers is the driver account surface; *driver.Service implements it.
type Drivers interface {
	LanguageOrDefault(ctx context.Context, chatID types.ChatID) string
	SetLanguage(ctx context.Context, chatID types.ChatID, lang string) error
	EnsureUser(ctx context.Context, u driver.User) (*driver.User, bool, error)
	Profile(ctx context.Context, chatID types.ChatID) (*driver.Profile, error)
	SetOnline(ctx context.Context, chatID types.ChatID, online bool) (*driver.Profile, error)
	SwapDirection(ctx context.Context, chatID types.ChatID) (*driver.Profile, error)
	CreditBalance(ctx context.Context, chatID types.ChatID, amount int64) (*driver.Profile, error)
}

// OfferLog tells whether a driver was offered an order; *matching.Service implements it.
type OfferLog interface {
	WasNotified(ctx context.Context, orderID types.ID, chatID types.ChatID) (bool, error)
}

type Translator interface {
	T(key, lang string, params map[string]any) string
	Supports(lang string) bool
}

type Deps struct {
	Client        Client
	Orders        Orders
	Drivers       Drivers
	Offers        OfferLog
	Translator    Translator
	Keyboards     *telegram.Keyboards
	Renderer      *dispatch.Renderer
	Payments      driver.PaymentRules
	ProviderToken string
	// StateTTL bounds how long a chat stays in the top-up amount prompt.
	StateTTL time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

type chatState string

const stateTopUp chatState = "top_up"

type Router struct {
	client        Client
	orders        Orders
	drivers       Drivers
	offers        OfferLog
	tr            Translator
	kb            *telegram.Keyboards
	renderer      *dispatch.Renderer
	payments      driver.PaymentRules
	providerToken string
	states        *cache.Cache
	logger        *slog.Logger
	now           func() time.Time
}

func NewRouter(deps Deps) *Router {
	r := &Router{
		client:        deps.Client,
		orders:        deps.Orders,
		drivers:       deps.Drivers,
		offers:        deps.Offers,
		tr:            deps.Translator,
		kb:            deps.Keyboards,
		renderer:      deps.Renderer,
		payments:      deps.Payments,
		providerToken: deps.ProviderToken,
		logger:        deps.Logger,
		now:           deps.Now,
	}
	ttl := deps.StateTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	r.states = cache.New(ttl, 2*ttl)
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.kb == nil {
		r.kb = telegram.NewKeyboards(deps.Translator)
	}
	if r.renderer == nil {
		r.renderer = dispatch.NewRenderer(deps.Translator)
	}
	return r
}

// Handle routes one update. It never panics and never returns an error;
// failures are logged and, where possible, reported to the chat.
func (r *Router) Handle(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("update handler panic", "update_id", upd.UpdateID, "panic", rec)
		}
	}()
	switch {
	case upd.PreCheckoutQuery != nil:
		r.onPreCheckout(ctx, upd.PreCheckoutQuery)
	case upd.CallbackQuery != nil:
		r.onCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		r.onMessage(ctx, upd.Message)
	}
}

func (r *Router) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := types.ChatID(msg.Chat.ID)
	switch {
	case msg.SuccessfulPayment != nil:
		r.onPayment(ctx, chatID, msg.SuccessfulPayment)
	case msg.IsCommand() && msg.Command() == "start":
		r.onStart(ctx, msg)
	case r.state(chatID) == stateTopUp && msg.Text != "":
		r.onAmountInput(ctx, chatID, msg.Text)
	}
}

func (r *Router) onStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := types.ChatID(msg.Chat.ID)
	r.clearState(chatID)

	u := driver.User{ChatID: chatID}
	if msg.From != nil {
		u.FullName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		u.Username = msg.From.UserName
		if r.tr.Supports(msg.From.LanguageCode) {
			u.Language = msg.From.LanguageCode
		}
	}
	user, created, err := r.drivers.EnsureUser(ctx, u)
	if err != nil {
		r.logger.Warn("start: user not available", "chat_id", chatID, "error", err)
		return
	}
	lang := r.drivers.LanguageOrDefault(ctx, chatID)
	if created {
		r.send(ctx, chatID, r.tr.T("welcome", lang, map[string]any{"name": r.renderer.Text(user.FullName)}), nil)
	}
	r.showMenu(ctx, chatID, 0, lang)
}

// showMenu edits messageID in place, or sends a new message when messageID is 0.
func (r *Router) showMenu(ctx context.Context, chatID types.ChatID, messageID int, lang string) {
	p, err := r.drivers.Profile(ctx, chatID)
	if err != nil {
		r.logger.Info("menu: no driver profile", "chat_id", chatID, "error", err)
		r.reply(ctx, chatID, messageID, r.tr.T("not_registered", lang, nil), nil)
		return
	}
	r.renderMenu(ctx, chatID, messageID, lang, p)
}

func (r *Router) renderMenu(ctx context.Context, chatID types.ChatID, messageID int, lang string, p *driver.Profile) {
	status := r.tr.T("status_offline", lang, nil)
	if p.Online() {
		status = r.tr.T("status_online", lang, nil)
	}
	text := r.tr.T("main_menu", lang, map[string]any{
		"direction": r.renderer.City(p.FromLocation) + " → " + r.renderer.City(p.ToLocation),
		"status":    status,
		"balance":   pricing.FormatAmount(p.Amount),
	})
	kb := r.kb.MainMenu(lang, p.Online())
	r.reply(ctx, chatID, messageID, text, &kb)
}

func (r *Router) reply(ctx context.Context, chatID types.ChatID, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if messageID != 0 {
		err := r.client.Edit(ctx, chatID, messageID, text, markup)
		if err == nil {
			return
		}
		r.logger.Debug("edit failed, sending instead", "chat_id", chatID, "error", err)
	}
	r.send(ctx, chatID, text, markup)
}

func (r *Router) send(ctx context.Context, chatID types.ChatID, text string, markup any) {
	if err := r.client.Send(ctx, chatID, text, markup); err != nil {
		r.logger.Warn("send failed", "chat_id", chatID, "error", err)
	}
}

func (r *Router) state(chatID types.ChatID) chatState {
	if v, ok := r.states.Get(chatID.String()); ok {
		return v.(chatState)
	}
	return ""
}

func (r *Router) setState(chatID types.ChatID, s chatState) {
	r.states.SetDefault(chatID.String(), s)
}

func (r *Router) clearState(chatID types.ChatID) {
	r.states.Delete(chatID.String())
}
