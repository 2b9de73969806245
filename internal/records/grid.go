package records

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Slot is one editable cell of the weekly grid. Hours stay free text.
type Slot struct {
	Section     string
	Description string
	Hours       string
}

// Grid models one week of slotted activity entries and derives totals.
type Grid struct {
	templates Templates
	days      map[Weekday][]Slot
}

// NewGrid creates an empty grid. A nil templates map disables description clearing.
func NewGrid(templates Templates) *Grid {
	g := &Grid{templates: templates, days: make(map[Weekday][]Slot, len(Weekdays))}
	for _, d := range Weekdays {
		g.days[d] = make([]Slot, d.MaxSlots())
	}
	return g
}

// GridFromActivities rebuilds a grid from stored activities.
func GridFromActivities(templates Templates, activities []Activity) *Grid {
	g := NewGrid(templates)
	for _, a := range activities {
		g.SetSlot(a.Day, a.Slot, a.Section, a.Description, a.Hours.String())
	}
	return g
}

func (g *Grid) slot(day Weekday, slot int) *Slot {
	slots, ok := g.days[day]
	if !ok || slot < 1 || slot > len(slots) {
		return nil
	}
	return &slots[slot-1]
}

// SetSlot overwrites a slot. Out of range positions are ignored.
func (g *Grid) SetSlot(day Weekday, slot int, section, description, hours string) {
	s := g.slot(day, slot)
	if s == nil {
		return
	}
	*s = Slot{Section: section, Description: description, Hours: hours}
}

// SetSection changes a slot's section and drops a description the new section does not offer.
func (g *Grid) SetSection(day Weekday, slot int, section string) {
	s := g.slot(day, slot)
	if s == nil {
		return
	}
	if s.Description != "" && g.templates != nil && !g.templates.Allows(section, s.Description) {
		s.Description = ""
	}
	s.Section = section
}

// SetDescription sets free text; it is accepted regardless of templates.
func (g *Grid) SetDescription(day Weekday, slot int, description string) {
	if s := g.slot(day, slot); s != nil {
		s.Description = description
	}
}

// SetHours sets the raw hours text of a slot.
func (g *Grid) SetHours(day Weekday, slot int, hours string) {
	if s := g.slot(day, slot); s != nil {
		s.Hours = hours
	}
}

// Slot returns a copy of the slot at the position.
func (g *Grid) Slot(day Weekday, slot int) (Slot, bool) {
	s := g.slot(day, slot)
	if s == nil {
		return Slot{}, false
	}
	return *s, true
}

// parseHours accepts "1.5" and "1,5". Anything unparsable or negative counts as empty.
func parseHours(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(strings.Replace(raw, ",", ".", 1))
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

func (g *Grid) dayTotal(day Weekday) (decimal.Decimal, bool) {
	total := decimal.Zero
	seen := false
	for _, s := range g.days[day] {
		if h, ok := parseHours(s.Hours); ok {
			total = total.Add(h)
			seen = true
		}
	}
	return total, seen
}

// DayTotal sums the day's hours. It returns ("", false) when no slot of the day has hours.
func (g *Grid) DayTotal(day Weekday) (string, bool) {
	total, ok := g.dayTotal(day)
	if !ok {
		return "", false
	}
	return total.StringFixed(1), true
}

// GrandTotal sums all non-empty day totals, formatted to one decimal place.
func (g *Grid) GrandTotal() string {
	total := decimal.Zero
	for _, d := range Weekdays {
		if t, ok := g.dayTotal(d); ok {
			total = total.Add(t)
		}
	}
	return total.StringFixed(1)
}

// Activities serializes the slots that have a section, a description and valid hours.
// Hours are rounded to one decimal; slots above a full day are skipped, so the
// result always passes ValidateActivities.
func (g *Grid) Activities() []Activity {
	var out []Activity
	for _, d := range Weekdays {
		for i, s := range g.days[d] {
			if strings.TrimSpace(s.Section) == "" || strings.TrimSpace(s.Description) == "" {
				continue
			}
			h, ok := parseHours(s.Hours)
			if !ok {
				continue
			}
			h = h.Round(1)
			if h.GreaterThan(maxSlotHours) {
				continue
			}
			out = append(out, Activity{
				Day:         d,
				Slot:        i + 1,
				Section:     strings.TrimSpace(s.Section),
				Description: strings.TrimSpace(s.Description),
				Hours:       h,
			})
		}
	}
	return out
}
