// README: Balance top-up: amount input, invoices, pre-checkout and successful payments.
package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"driverbot/internal/modules/driver"
	"driverbot/internal/modules/pricing"
	"driverbot/internal/telegram"
	"driverbot/internal/types"
)

func (r *Router) onAmountInput(ctx context.Context, chatID types.ChatID, text string) {
	lang := r.drivers.LanguageOrDefault(ctx, chatID)
	presets := r.kb.TopUpPresets(lang, r.payments.Presets)

	amount, err := driver.ParseAmountInput(text)
	if err != nil {
		r.send(ctx, chatID, r.tr.T("only_numbers", lang, nil), presets)
		return
	}
	if err := r.payments.Validate(amount); err != nil {
		switch {
		case errors.Is(err, driver.ErrBelowMinimum):
			r.send(ctx, chatID, r.tr.T("min_payment", lang, map[string]any{"min": pricing.FormatAmount(r.payments.MinTopUp)}), presets)
		case errors.Is(err, driver.ErrAboveMaximum):
			r.send(ctx, chatID, r.tr.T("max_payment", lang, map[string]any{"max": pricing.FormatAmount(r.payments.MaxAmount())}), presets)
		default:
			r.send(ctx, chatID, r.tr.T("only_numbers", lang, nil), presets)
		}
		return
	}
	r.sendInvoice(ctx, chatID, lang, amount)
}

func (r *Router) sendInvoice(ctx context.Context, chatID types.ChatID, lang string, amount int64) {
	r.clearState(chatID)
	title := r.tr.T("payment_title", lang, nil)
	kb := r.kb.Pay(lang)
	inv := telegram.Invoice{
		ChatID:        chatID,
		Title:         title,
		Description:   r.tr.T("payment_description", lang, map[string]any{"amount": pricing.FormatAmount(amount)}),
		Payload:       driver.InvoicePayload(chatID, amount),
		ProviderToken: r.providerToken,
		Currency:      r.payments.Currency,
		Label:         title,
		Amount:        driver.MinorUnits(amount),
		Markup:        &kb,
	}
	if err := r.client.SendInvoice(ctx, inv); err != nil {
		r.logger.Error("send invoice failed", "chat_id", chatID, "amount", amount, "error", err)
		r.send(ctx, chatID, r.tr.T("error_generic", lang, nil), nil)
		return
	}
	r.logger.Info("invoice sent", "chat_id", chatID, "amount", amount)
}

func (r *Router) onPreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) {
	_, amount, err := driver.ParseInvoicePayload(q.InvoicePayload)
	ok := err == nil && r.payments.Validate(amount) == nil && driver.MinorUnits(amount) == q.TotalAmount
	errMsg := ""
	if !ok {
		lang := ""
		if q.From != nil {
			lang = r.drivers.LanguageOrDefault(ctx, types.ChatID(q.From.ID))
		}
		errMsg = r.tr.T("error_generic", lang, nil)
		r.logger.Warn("pre-checkout rejected", "payload", q.InvoicePayload, "total", q.TotalAmount)
	}
	if err := r.client.AnswerPreCheckout(ctx, q.ID, ok, errMsg); err != nil {
		r.logger.Error("answer pre-checkout failed", "query_id", q.ID, "error", err)
	}
}

func (r *Router) onPayment(ctx context.Context, chatID types.ChatID, p *tgbotapi.SuccessfulPayment) {
	lang := r.drivers.LanguageOrDefault(ctx, chatID)
	back := r.kb.Back(lang)

	driverChat, _, err := driver.ParseInvoicePayload(p.InvoicePayload)
	if err != nil {
		r.logger.Error("payment with unknown payload", "chat_id", chatID, "payload", p.InvoicePayload, "charge_id", p.TelegramPaymentChargeID)
		r.send(ctx, chatID, r.tr.T("payment_failed", lang, nil), back)
		return
	}
	amount := driver.FromMinorUnits(p.TotalAmount)
	if _, err := r.drivers.CreditBalance(ctx, driverChat, amount); err != nil {
		r.logger.Error("credit balance failed", "chat_id", driverChat, "amount", amount, "charge_id", p.TelegramPaymentChargeID, "error", err)
		r.send(ctx, chatID, r.tr.T("payment_failed", lang, nil), back)
		return
	}
	r.logger.Info("payment credited", "chat_id", driverChat, "amount", amount, "charge_id", p.TelegramPaymentChargeID)
	r.send(ctx, chatID, r.tr.T("payment_success", lang, map[string]any{"amount": pricing.FormatAmount(amount)}), back)
}
