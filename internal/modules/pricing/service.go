// README: Amount formatting for driver-facing messages.
package pricing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Comma grouping for every reader locale.
var digitGrouping = message.NewPrinter(language.English)

// FormatAmount renders 100000 as "100,000".
func FormatAmount(amount int64) string {
	return digitGrouping.Sprintf("%d", amount)
}
