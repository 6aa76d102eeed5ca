// README: Driver-facing order texts; user-supplied fields are escaped for HTML parse mode.
package dispatch

import (
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"driverbot/internal/modules/order"
	"driverbot/internal/modules/pricing"
)

// Translator resolves localized templates.
type Translator interface {
	T(key, lang string, params map[string]any) string
}

const (
	iconWoman  = "👩"
	iconPerson = "👤"
)

type Renderer struct {
	tr     Translator
	policy *bluemonday.Policy
}

func NewRenderer(tr Translator) *Renderer {
	return &Renderer{tr: tr, policy: bluemonday.StrictPolicy()}
}

// clean strips markup from backend strings and escapes what remains.
func (r *Renderer) clean(s string) string {
	return r.policy.Sanitize(strings.TrimSpace(s))
}

// Text sanitizes a free-form backend or user string.
func (r *Renderer) Text(s string) string {
	return r.clean(s)
}

// City title-cases a city name: "tashkent" -> "Tashkent".
func (r *Renderer) City(name string) string {
	return r.clean(cases.Title(language.Und).String(strings.ToLower(strings.TrimSpace(name))))
}

// OfferText is the fan-out notification for one driver.
func (r *Renderer) OfferText(o *order.Order, lang string) string {
	params := map[string]any{
		"travel_id": o.ID,
		"from_city": r.City(o.FromCity),
		"to_city":   r.City(o.ToCity),
		"price":     pricing.FormatAmount(o.Content.Price.Amount),
	}
	if o.IsDelivery() {
		return r.tr.T("new_delivery_request", lang, params)
	}
	r.addPassengers(params, o, lang)
	return r.tr.T("new_trip_request", lang, params)
}

// AcceptedText is shown to the driver who took the order, with contact details.
func (r *Renderer) AcceptedText(o *order.Order, lang string, now time.Time) string {
	phone := ""
	if o.Creator != nil {
		phone = r.clean(o.Creator.Phone)
	}
	params := map[string]any{
		"travel_id": o.ID,
		"from_city": r.City(o.FromCity),
		"to_city":   r.City(o.ToCity),
		"price":     pricing.FormatAmount(o.Content.Price.Amount),
		"phone":     phone,
		"time":      now.Format("15:04"),
	}
	if o.IsDelivery() {
		return r.tr.T("accepted_order", lang, params)
	}
	r.addPassengers(params, o, lang)
	params["travel_class"] = r.City(o.Content.TravelClass)
	return r.tr.T("accepted_order_details", lang, params)
}

func (r *Renderer) addPassengers(params map[string]any, o *order.Order, lang string) {
	params["passenger"] = o.Content.Passengers
	if o.Content.HasWoman {
		params["gender_icon"] = iconWoman
		params["woman_note"] = r.tr.T("woman_passenger_note", lang, nil)
	} else {
		params["gender_icon"] = iconPerson
		params["woman_note"] = ""
	}
}
