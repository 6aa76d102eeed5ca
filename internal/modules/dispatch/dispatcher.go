// README: Order dispatcher; fans created orders out to matching drivers and sends the safe trip notice on start.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"driverbot/internal/modules/matching"
	"driverbot/internal/modules/order"
	"driverbot/internal/telegram"
	"driverbot/internal/types"
)

// Finder selects drivers for an order and remembers who was offered it.
type Finder interface {
	FindCandidates(ctx context.Context, o *order.Order) []matching.Candidate
	RecordNotified(ctx context.Context, orderID types.ID, chatIDs []types.ChatID) error
}

// LanguageResolver returns a chat's preferred language.
type LanguageResolver interface {
	Language(ctx context.Context, chatID types.ChatID) (string, error)
}

type Deps struct {
	Queue       *MessageQueue
	Sender      Sender
	Finder      Finder
	Languages   LanguageResolver
	Translator  Translator
	Keyboards   *telegram.Keyboards
	Metrics     *Metrics
	Logger      *slog.Logger
	DefaultLang string
}

type Dispatcher struct {
	queue       *MessageQueue
	sender      Sender
	finder      Finder
	langs       LanguageResolver
	tr          Translator
	keyboards   *telegram.Keyboards
	renderer    *Renderer
	metrics     *Metrics
	logger      *slog.Logger
	defaultLang string

	mu           sync.Mutex
	queueStarted bool
}

func NewDispatcher(deps Deps) *Dispatcher {
	d := &Dispatcher{
		queue:       deps.Queue,
		sender:      deps.Sender,
		finder:      deps.Finder,
		langs:       deps.Languages,
		tr:          deps.Translator,
		keyboards:   deps.Keyboards,
		renderer:    NewRenderer(deps.Translator),
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		defaultLang: deps.DefaultLang,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(nil, "")
	}
	if d.defaultLang == "" {
		d.defaultLang = "uz"
	}
	if d.keyboards == nil {
		d.keyboards = telegram.NewKeyboards(deps.Translator)
	}
	return d
}

// HandleRaw parses an order payload and handles it. Malformed payloads are
// logged and ignored.
func (d *Dispatcher) HandleRaw(ctx context.Context, body []byte) order.Action {
	o, err := order.Parse(body)
	if err != nil {
		var perr *order.ParseError
		field := ""
		if errors.As(err, &perr) {
			field = perr.Field
		}
		d.metrics.orders.WithLabelValues(actionInvalid).Inc()
		d.logger.Warn("order payload rejected", "field", field, "error", err)
		return order.ActionNone
	}
	return d.Handle(ctx, o)
}

// Handle runs the action for the order's status. It never fails; every
// error is logged.
func (d *Dispatcher) Handle(ctx context.Context, o *order.Order) (action order.Action) {
	action = order.DispatchActionFor(o.Status)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("order dispatch panic", "order_id", o.ID, "status", o.Status, "panic", r)
		}
	}()
	d.metrics.order(action)

	switch action {
	case order.ActionFanOut:
		d.ensureQueueStarted()
		d.fanOut(ctx, o)
	case order.ActionSafeTrip:
		d.ensureQueueStarted()
		d.safeTrip(ctx, o)
	default:
		d.logger.Debug("no dispatch action for status", "order_id", o.ID, "status", o.Status)
	}
	return action
}

func (d *Dispatcher) ensureQueueStarted() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queueStarted {
		return
	}
	d.queue.Start()
	d.queueStarted = true
}

// Close stops the queue if this dispatcher started it.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.queueStarted {
		return
	}
	d.queue.Stop()
	d.queueStarted = false
}

func (d *Dispatcher) fanOut(ctx context.Context, o *order.Order) {
	candidates := d.finder.FindCandidates(ctx, o)
	notified := make([]types.ChatID, 0, len(candidates))
	for _, c := range candidates {
		if c.ChatID == 0 {
			d.logger.Warn("driver has no telegram id", "order_id", o.ID, "driver_id", c.ID)
			continue
		}
		lang := c.Language
		if lang == "" {
			lang = d.defaultLang
		}
		d.queue.Add(MessageTask{
			ChatID:      c.ChatID,
			Text:        d.renderer.OfferText(o, lang),
			ReplyMarkup: d.keyboards.AcceptOrder(lang, o.ID, o.IsDelivery()),
			OrderID:     o.ID,
		})
		notified = append(notified, c.ChatID)
	}
	d.metrics.candidates.Observe(float64(len(notified)))
	d.logger.Info("order fanned out", "order_id", o.ID, "drivers", len(notified), "delivery", o.IsDelivery())

	if err := d.finder.RecordNotified(ctx, o.ID, notified); err != nil {
		d.logger.Warn("record notified drivers failed", "order_id", o.ID, "error", err)
	}
}

func (d *Dispatcher) safeTrip(ctx context.Context, o *order.Order) {
	if o.Driver == nil || o.Driver.TelegramID == 0 {
		d.logger.Warn("started order has no driver chat", "order_id", o.ID)
		return
	}
	chatID := o.Driver.TelegramID
	lang, err := d.langs.Language(ctx, chatID)
	if err != nil {
		d.logger.Error("resolve driver language failed", "order_id", o.ID, "chat_id", chatID, "error", err)
		return
	}
	text := d.tr.T("safe_trip", lang, nil)
	if err := d.sender.Send(ctx, chatID, text, d.keyboards.FinishTrip(lang, o.ID)); err != nil {
		d.logger.Error("safe trip send failed", "order_id", o.ID, "chat_id", chatID, "error", err)
		return
	}
	d.logger.Info("safe trip sent", "order_id", o.ID, "chat_id", chatID)
}

// Renderer exposes the order texts for the bot's accept flow.
func (d *Dispatcher) Renderer() *Renderer {
	return d.renderer
}
