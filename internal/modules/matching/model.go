// README: Driver candidates and the directory filter built from an order.
package matching

import (
	"strings"

	"driverbot/internal/types"
)

const (
	StatusOnline = "online"

	// OrderingByAmountDesc asks the directory for the best-funded drivers first.
	OrderingByAmountDesc = "-amount"
)

// Candidate is a driver returned by the directory.
type Candidate struct {
	ID           types.ID
	ChatID       types.ChatID
	FullName     string
	Status       string
	FromLocation string
	ToLocation   string
	CarClass     string
	Amount       int64
	Busy         bool
	Language     string
}

// DriverFilter is the directory query for one order.
type DriverFilter struct {
	FromLocation string
	ToLocation   string
	Status       string
	MinAmount    int64
	Ordering     string
	ExcludeBusy  bool
	CarClasses   []string
}

// classMap lists which vehicle classes may serve an order class.
var classMap = map[string][]string{
	"economy":  {"economy"},
	"standard": {"standard", "comfort"},
	"comfort":  {"comfort"},
}

// CarClassesFor maps an order travel class to accepted vehicle classes.
// Empty, "all" and unknown classes yield nil: no class filter.
func CarClassesFor(travelClass string) []string {
	key := strings.ToLower(strings.TrimSpace(travelClass))
	if key == "" || key == "all" {
		return nil
	}
	classes, ok := classMap[key]
	if !ok {
		return nil
	}
	out := make([]string, len(classes))
	copy(out, classes)
	return out
}

// Matches re-applies the filter locally. Unknown candidate fields pass.
func (f DriverFilter) Matches(c Candidate) bool {
	if f.Status != "" && c.Status != "" && !strings.EqualFold(c.Status, f.Status) {
		return false
	}
	if f.ExcludeBusy && c.Busy {
		return false
	}
	if len(f.CarClasses) > 0 && c.CarClass != "" {
		found := false
		for _, cls := range f.CarClasses {
			if strings.EqualFold(cls, c.CarClass) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
