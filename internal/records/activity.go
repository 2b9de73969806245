package records

import (
	"github.com/shopspring/decimal"

	"github.com/ausbildung/nachweis/internal/shared"
)

// Weekday names a day within a weekly record.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// Weekdays lists all days in display order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// MaxSlots returns how many slots the day offers, or 0 for an unknown day.
func (d Weekday) MaxSlots() int {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday:
		return 5
	case Saturday, Sunday:
		return 3
	default:
		return 0
	}
}

// IsValid checks if the weekday is known.
func (d Weekday) IsValid() bool { return d.MaxSlots() > 0 }

// Label returns the German day name used on documents.
func (d Weekday) Label() string {
	switch d {
	case Monday:
		return "Montag"
	case Tuesday:
		return "Dienstag"
	case Wednesday:
		return "Mittwoch"
	case Thursday:
		return "Donnerstag"
	case Friday:
		return "Freitag"
	case Saturday:
		return "Samstag"
	case Sunday:
		return "Sonntag"
	default:
		return string(d)
	}
}

// Activity is one filled slot of a record.
type Activity struct {
	Day         Weekday         `json:"day"`
	Slot        int             `json:"slot"`
	Section     string          `json:"section"`
	Description string          `json:"description"`
	Hours       decimal.Decimal `json:"hours"`
}

type slotKey struct {
	day  Weekday
	slot int
}

// maxSlotHours caps one slot at a full day.
var maxSlotHours = decimal.NewFromInt(24)

// ValidateActivities enforces slot bounds, hour precision and one entry per slot.
func ValidateActivities(activities []Activity) error {
	seen := make(map[slotKey]struct{}, len(activities))
	for i, a := range activities {
		if !a.Day.IsValid() {
			return shared.Validationf("activity %d: unknown day %q", i+1, a.Day)
		}
		if a.Slot < 1 || a.Slot > a.Day.MaxSlots() {
			return shared.Validationf("activity %d: slot %d out of range for %s", i+1, a.Slot, a.Day)
		}
		if a.Hours.IsNegative() {
			return shared.Validationf("activity %d: hours must not be negative", i+1)
		}
		if a.Hours.GreaterThan(maxSlotHours) {
			return shared.Validationf("activity %d: hours must not exceed %s", i+1, maxSlotHours)
		}
		if a.Hours.Exponent() < -1 && !a.Hours.Equal(a.Hours.Round(1)) {
			return shared.Validationf("activity %d: hours allow one fractional digit", i+1)
		}
		if a.Section == "" || a.Description == "" {
			return shared.Validationf("activity %d: section and description are required", i+1)
		}
		k := slotKey{a.Day, a.Slot}
		if _, dup := seen[k]; dup {
			return shared.Validationf("activity %d: %s slot %d used twice", i+1, a.Day, a.Slot)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// TotalHours sums the hours of all activities.
func TotalHours(activities []Activity) decimal.Decimal {
	total := decimal.Zero
	for _, a := range activities {
		total = total.Add(a.Hours)
	}
	return total
}
