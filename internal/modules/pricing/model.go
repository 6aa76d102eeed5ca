// README: Fare thresholds used when selecting drivers, and top-up presets.
package pricing

import "driverbot/internal/types"

// Commission is the share of a fare a driver must cover from balance to be
// offered the order.
type Commission struct {
	Percent float64
}

// DefaultCommission matches the platform fee of five percent.
var DefaultCommission = Commission{Percent: 5}

// MinDriverAmount is the integer threshold for a fare, truncated toward zero.
func (c Commission) MinDriverAmount(price types.Money) int64 {
	if price.Amount <= 0 || c.Percent <= 0 {
		return 0
	}
	return int64(float64(price.Amount) * c.Percent / 100)
}
