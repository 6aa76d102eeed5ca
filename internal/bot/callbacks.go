// README: Inline keyboard callbacks.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"driverbot/internal/modules/driver"
	"driverbot/internal/modules/order"
	"driverbot/internal/modules/pricing"
	"driverbot/internal/telegram"
	"driverbot/internal/types"
)

// callback carries what every callback handler needs.
type callback struct {
	id        string
	chatID    types.ChatID
	messageID int
	data      string
	lang      string
}

func (r *Router) onCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.Message == nil || q.Message.Chat == nil {
		_ = r.client.AnswerCallback(ctx, q.ID, "")
		return
	}
	cb := callback{
		id:        q.ID,
		chatID:    types.ChatID(q.Message.Chat.ID),
		messageID: q.Message.MessageID,
		data:      q.Data,
	}
	cb.lang = r.drivers.LanguageOrDefault(ctx, cb.chatID)

	// Handlers that show a toast answer the callback themselves.
	answered := false
	switch data := cb.data; {
	case strings.HasPrefix(data, telegram.CallbackAcceptTravel):
		r.onAccept(ctx, cb, strings.TrimPrefix(data, telegram.CallbackAcceptTravel))
	case strings.HasPrefix(data, telegram.CallbackAcceptDelivery):
		r.onAccept(ctx, cb, strings.TrimPrefix(data, telegram.CallbackAcceptDelivery))
	case strings.HasPrefix(data, telegram.CallbackArrived):
		answered = r.onProgress(ctx, cb, strings.TrimPrefix(data, telegram.CallbackArrived), order.StatusArrived)
	case strings.HasPrefix(data, telegram.CallbackPicked):
		answered = r.onProgress(ctx, cb, strings.TrimPrefix(data, telegram.CallbackPicked), order.StatusStarted)
	case strings.HasPrefix(data, telegram.CallbackFinished):
		answered = r.onProgress(ctx, cb, strings.TrimPrefix(data, telegram.CallbackFinished), order.StatusEnded)
	case strings.HasPrefix(data, telegram.CallbackSum):
		r.onPreset(ctx, cb, strings.TrimPrefix(data, telegram.CallbackSum))
	case strings.HasPrefix(data, telegram.CallbackLanguage):
		answered = r.onLanguage(ctx, cb, strings.TrimPrefix(data, telegram.CallbackLanguage))
	case data == telegram.CallbackOnline, data == telegram.CallbackOffline:
		answered = r.onStatus(ctx, cb, data == telegram.CallbackOnline)
	case data == telegram.CallbackBalance:
		r.onBalance(ctx, cb)
	case data == telegram.CallbackTopUp:
		r.onTopUp(ctx, cb)
	case data == telegram.CallbackDirection:
		answered = r.onDirection(ctx, cb)
	case data == telegram.CallbackSettings:
		kb := r.kb.Languages(cb.lang)
		r.reply(ctx, cb.chatID, cb.messageID, r.tr.T("choose_language", cb.lang, nil), &kb)
	case data == telegram.CallbackChat:
		r.send(ctx, cb.chatID, r.tr.T("chat_deployment", cb.lang, nil), nil)
	case data == telegram.CallbackBack:
		r.clearState(cb.chatID)
		r.showMenu(ctx, cb.chatID, cb.messageID, cb.lang)
	default:
		r.logger.Debug("unknown callback", "chat_id", cb.chatID, "data", data)
	}
	if !answered {
		r.answer(ctx, cb, "")
	}
}

func (r *Router) answer(ctx context.Context, cb callback, text string) {
	if err := r.client.AnswerCallback(ctx, cb.id, text); err != nil {
		r.logger.Debug("answer callback failed", "chat_id", cb.chatID, "error", err)
	}
}

func parseOrderID(s string) (types.ID, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return types.ID(n), true
}

func (r *Router) onAccept(ctx context.Context, cb callback, rawID string) {
	orderID, ok := parseOrderID(rawID)
	if !ok {
		r.logger.Warn("accept: bad order id", "chat_id", cb.chatID, "data", cb.data)
		return
	}
	p, err := r.drivers.Profile(ctx, cb.chatID)
	if err != nil {
		r.reply(ctx, cb.chatID, cb.messageID, r.tr.T("not_registered", cb.lang, nil), nil)
		return
	}
	back := r.kb.Back(cb.lang)
	if r.offers != nil {
		offered, err := r.offers.WasNotified(ctx, orderID, cb.chatID)
		if err != nil {
			r.logger.Warn("accept: offer lookup failed", "order_id", orderID, "chat_id", cb.chatID, "error", err)
		} else if !offered {
			r.reply(ctx, cb.chatID, cb.messageID, r.tr.T("order_not_offered", cb.lang, nil), &back)
			return
		}
	}

	o, err := r.orders.Accept(ctx, order.AcceptCommand{OrderID: orderID, DriverID: p.ID})
	switch {
	case errors.Is(err, order.ErrConflict):
		r.reply(ctx, cb.chatID, cb.messageID, r.tr.T("order_taken_by_other", cb.lang, nil), &back)
		return
	case err != nil:
		r.logger.Error("accept failed", "order_id", orderID, "chat_id", cb.chatID, "error", err)
		r.reply(ctx, cb.chatID, cb.messageID, r.tr.T("error_generic", cb.lang, nil), &back)
		return
	}
	r.logger.Info("order accepted", "order_id", orderID, "driver_id", p.ID, "chat_id", cb.chatID)

	if pickup := o.Content.Pickup; pickup != nil {
		if err := r.client.SendLocation(ctx, cb.chatID, pickup.Lat, pickup.Lng); err != nil {
			r.logger.Warn("send pickup location failed", "order_id", orderID, "error", err)
		}
	}
	kb := r.kb.Assigned(cb.lang, orderID)
	r.reply(ctx, cb.chatID, cb.messageID, r.renderer.AcceptedText(o, cb.lang, r.now()), &kb)
}

// onProgress handles arrived, picked up and finished.
func (r *Router) onProgress(ctx context.Context, cb callback, rawID string, to order.Status) bool {
	orderID, ok := parseOrderID(rawID)
	if !ok {
		return false
	}
	p, err := r.drivers.Profile(ctx, cb.chatID)
	if err != nil {
		r.reply(ctx, cb.chatID, cb.messageID, r.tr.T("not_registered", cb.lang, nil), nil)
		return false
	}
	cmd := order.ProgressCommand{OrderID: orderID, DriverID: p.ID}
	switch to {
	case order.StatusArrived:
		_, err = r.orders.Arrive(ctx, cmd)
	case order.StatusStarted:
		_, err = r.orders.PickUp(ctx, cmd)
	case order.StatusEnded:
		_, err = r.orders.Finish(ctx, cmd)
	}
	if err != nil {
		r.logger.Warn("order progress rejected", "order_id", orderID, "to", to, "chat_id", cb.chatID, "error", err)
		key := "error_generic"
		if errors.Is(err, order.ErrInvalidState) || errors.Is(err, order.ErrForbidden) || errors.Is(err, order.ErrConflict) {
			key = "invalid_state"
		}
		r.answer(ctx, cb, r.tr.T(key, cb.lang, nil))
		return true
	}

	switch to {
	case order.StatusArrived:
		kb := r.kb.PickedUp(cb.lang, orderID)
		r.send(ctx, cb.chatID, r.tr.T("send_arrived_info", cb.lang, nil), kb)
	case order.StatusStarted:
		kb := r.kb.FinishTrip(cb.lang, orderID)
		r.reply(ctx, cb.chatID, cb.messageID, r.tr.T("safe_trip", cb.lang, nil), &kb)
	case order.StatusEnded:
		r.reply(ctx, cb.chatID, cb.messageID, r.tr.T("great", cb.lang, nil), nil)
	}
	return false
}

func (r *Router) onStatus(ctx context.Context, cb callback, online bool) bool {
	p, err := r.drivers.SetOnline(ctx, cb.chatID, online)
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			r.reply(ctx, cb.chatID, cb.messageID, r.tr.T("not_registered", cb.lang, nil), nil)
			return false
		}
		r.logger.Error("set status failed", "chat_id", cb.chatID, "error", err)
		r.answer(ctx, cb, r.tr.T("error_generic", cb.lang, nil))
		return true
	}
	key := "went_offline"
	if online {
		key = "went_online"
	}
	r.answer(ctx, cb, r.tr.T(key, cb.lang, nil))
	r.renderMenu(ctx, cb.chatID, cb.messageID, cb.lang, p)
	return true
}

func (r *Router) onBalance(ctx context.Context, cb callback) {
	r.clearState(cb.chatID)
	p, err := r.drivers.Profile(ctx, cb.chatID)
	if err != nil {
		r.reply(ctx, cb.chatID, cb.messageID, r.tr.T("not_registered", cb.lang, nil), nil)
		return
	}
	kb := r.kb.Balance(cb.lang)
	text := r.tr.T("account_balance_info", cb.lang, map[string]any{"amount": pricing.FormatAmount(p.Amount)})
	r.reply(ctx, cb.chatID, cb.messageID, text, &kb)
}

func (r *Router) onTopUp(ctx context.Context, cb callback) {
	r.setState(cb.chatID, stateTopUp)
	kb := r.kb.TopUpPresets(cb.lang, r.payments.Presets)
	r.reply(ctx, cb.chatID, cb.messageID, r.tr.T("top_up_prompt", cb.lang, nil), &kb)
}

func (r *Router) onPreset(ctx context.Context, cb callback, thousands string) {
	amount, err := driver.PresetAmount(thousands)
	if err == nil {
		err = r.payments.Validate(amount)
	}
	if err != nil {
		r.logger.Warn("bad preset amount", "chat_id", cb.chatID, "data", cb.data, "error", err)
		return
	}
	if err := r.client.Delete(ctx, cb.chatID, cb.messageID); err != nil {
		r.logger.Debug("delete preset message failed", "chat_id", cb.chatID, "error", err)
	}
	r.sendInvoice(ctx, cb.chatID, cb.lang, amount)
}

func (r *Router) onDirection(ctx context.Context, cb callback) bool {
	p, err := r.drivers.SwapDirection(ctx, cb.chatID)
	if err != nil {
		r.logger.Error("swap direction failed", "chat_id", cb.chatID, "error", err)
		r.answer(ctx, cb, r.tr.T("error_generic", cb.lang, nil))
		return true
	}
	r.answer(ctx, cb, r.tr.T("change_direction", cb.lang, nil))
	r.renderMenu(ctx, cb.chatID, cb.messageID, cb.lang, p)
	return true
}

func (r *Router) onLanguage(ctx context.Context, cb callback, code string) bool {
	if !r.tr.Supports(code) {
		return false
	}
	if err := r.drivers.SetLanguage(ctx, cb.chatID, code); err != nil {
		r.logger.Error("set language failed", "chat_id", cb.chatID, "lang", code, "error", err)
		r.answer(ctx, cb, r.tr.T("error_generic", cb.lang, nil))
		return true
	}
	r.answer(ctx, cb, r.tr.T("language_changed", code, nil))
	r.showMenu(ctx, cb.chatID, cb.messageID, code)
	return true
}
