// README: Inline and reply keyboards with their callback data formats.
package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"driverbot/internal/types"
)

// Translator resolves button labels.
type Translator interface {
	T(key, lang string, params map[string]any) string
}

// Callback data prefixes. Order callbacks carry the order id after the prefix.
const (
	CallbackAcceptTravel   = "accept_travel_"
	CallbackAcceptDelivery = "accept_delivery_"
	CallbackArrived        = "arrived_"
	CallbackPicked         = "picked_"
	CallbackFinished       = "finished_"
	CallbackChat           = "chat"
	CallbackBack           = "back"
	CallbackOnline         = "online"
	CallbackOffline        = "offline"
	CallbackBalance        = "balance"
	CallbackTopUp          = "top_up_balance"
	CallbackSum            = "sum_"
	CallbackDirection      = "direction"
	CallbackSettings       = "settings"
	CallbackLanguage       = "lang_"
)

var languageLabels = []struct {
	code, label string
}{
	{"uz", "🇺🇿 O'zbekcha"},
	{"ru", "🇷🇺 Русский"},
	{"en", "🇬🇧 English"},
}

type Keyboards struct {
	tr Translator
}

func NewKeyboards(tr Translator) *Keyboards {
	return &Keyboards{tr: tr}
}

func (k *Keyboards) button(lang, key, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(k.tr.T(key, lang, nil), data)
}

// AcceptOrder is attached to every fan-out notification.
func (k *Keyboards) AcceptOrder(lang string, orderID types.ID, delivery bool) tgbotapi.InlineKeyboardMarkup {
	prefix := CallbackAcceptTravel
	if delivery {
		prefix = CallbackAcceptDelivery
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_accept", prefix+orderID.String())),
	)
}

// Assigned follows a successful accept: chat with the passenger or report arrival.
func (k *Keyboards) Assigned(lang string, orderID types.ID) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_chat", CallbackChat)),
		tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_arrived", CallbackArrived+orderID.String())),
	)
}

func (k *Keyboards) PickedUp(lang string, orderID types.ID) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_picked", CallbackPicked+orderID.String())),
	)
}

// FinishTrip is attached to the safe trip message.
func (k *Keyboards) FinishTrip(lang string, orderID types.ID) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_finish", CallbackFinished+orderID.String())),
	)
}

func (k *Keyboards) Back(lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_back", CallbackBack)),
	)
}

func (k *Keyboards) MainMenu(lang string, online bool) tgbotapi.InlineKeyboardMarkup {
	toggle := k.button(lang, "btn_go_online", CallbackOnline)
	if online {
		toggle = k.button(lang, "btn_go_offline", CallbackOffline)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(toggle),
		tgbotapi.NewInlineKeyboardRow(
			k.button(lang, "btn_balance", CallbackBalance),
			k.button(lang, "btn_direction", CallbackDirection),
		),
		tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_settings", CallbackSettings)),
	)
}

func (k *Keyboards) Balance(lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_top_up", CallbackTopUp)),
		tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_back", CallbackBack)),
	)
}

// TopUpPresets offers fixed amounts two per row; labels are in thousands.
func (k *Keyboards) TopUpPresets(lang string, presets []int64) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, p := range presets {
		thousands := p / 1000
		label := fmt.Sprintf("%d 000", thousands)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", CallbackSum, thousands)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_back", CallbackBack)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Pay must be the first button of an invoice keyboard.
func (k *Keyboards) Pay(lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{{Text: k.tr.T("btn_pay", lang, nil), Pay: true}},
		tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_back", CallbackBack)),
	)
}

func (k *Keyboards) Languages(lang string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, l := range languageLabels {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(l.label, CallbackLanguage+l.code),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(k.button(lang, "btn_back", CallbackBack)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ShareContact asks a new user for a phone number.
func (k *Keyboards) ShareContact(lang string) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(k.tr.T("btn_share_contact", lang, nil))),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}
