package records

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid_DayTotal(t *testing.T) {
	tests := []struct {
		name   string
		hours  []string
		want   string
		wantOK bool
	}{
		{"mixed entries", []string{"2", "1.5", "", "", ""}, "3.5", true},
		{"all empty", []string{"", "", "", "", ""}, "", false},
		{"explicit zero", []string{"0", "", "", "", ""}, "0.0", true},
		{"comma decimal", []string{"1,5", "2", "", "", ""}, "3.5", true},
		{"garbage ignored", []string{"abc", "4", "", "", ""}, "4.0", true},
		{"negative ignored", []string{"-3", "", "", "", ""}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGrid(DefaultTemplates)
			for i, h := range tt.hours {
				g.SetSlot(Monday, i+1, "Schule", "Berufsschulunterricht", h)
			}
			got, ok := g.DayTotal(Monday)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrid_GrandTotalIsSumOfDayTotals(t *testing.T) {
	g := NewGrid(DefaultTemplates)
	g.SetSlot(Monday, 1, "Schule", "x", "2")
	g.SetSlot(Monday, 2, "Schule", "x", "1.5")
	g.SetSlot(Wednesday, 5, "Meeting", "x", "0.5")
	g.SetSlot(Saturday, 3, "Sonstiges", "x", "4")
	g.SetSlot(Sunday, 1, "Sonstiges", "x", "")

	sum := decimal.Zero
	for _, d := range Weekdays {
		if total, ok := g.DayTotal(d); ok {
			sum = sum.Add(decimal.RequireFromString(total))
		}
	}
	assert.Equal(t, sum.StringFixed(1), g.GrandTotal())
	assert.Equal(t, "8.0", g.GrandTotal())
	assert.Equal(t, "0.0", NewGrid(nil).GrandTotal())
}

func TestGrid_OutOfRangeSlotsIgnored(t *testing.T) {
	g := NewGrid(DefaultTemplates)
	g.SetSlot(Saturday, 4, "Schule", "x", "3")
	g.SetSlot(Monday, 0, "Schule", "x", "3")
	g.SetSlot("HOLIDAY", 1, "Schule", "x", "3")

	_, ok := g.Slot(Saturday, 4)
	assert.False(t, ok)
	assert.Equal(t, "0.0", g.GrandTotal())
	assert.Empty(t, g.Activities())
}

func TestGrid_ActivitiesSkipIncompleteSlots(t *testing.T) {
	g := NewGrid(DefaultTemplates)
	g.SetSlot(Monday, 1, "Schule", "Berufsschulunterricht", "8")
	g.SetSlot(Monday, 2, "Schule", "", "1")
	g.SetSlot(Monday, 3, "", "Berufsschulunterricht", "1")
	g.SetSlot(Tuesday, 1, "Meeting", "Daily Standup mit Team", "")
	g.SetSlot(Tuesday, 2, "Meeting", "Daily Standup mit Team", "kaputt")
	g.SetSlot(Friday, 5, "Entwickeln", "Code-Review und Refactoring", "1,5")

	acts := g.Activities()
	require.Len(t, acts, 2)
	assert.Equal(t, Monday, acts[0].Day)
	assert.Equal(t, 1, acts[0].Slot)
	assert.Equal(t, Friday, acts[1].Day)
	assert.Equal(t, 5, acts[1].Slot)
	assert.True(t, decimal.RequireFromString("1.5").Equal(acts[1].Hours))
	for _, a := range acts {
		assert.NotEmpty(t, a.Section)
		assert.NotEmpty(t, a.Description)
	}
}

func TestGrid_ActivitiesAreValidCreateInput(t *testing.T) {
	g := NewGrid(nil)
	g.SetSlot(Monday, 1, "Betrieb", "Lager", "1.25")
	g.SetSlot(Monday, 2, "Schule", "Mathe", "2,04")
	g.SetSlot(Tuesday, 1, "Betrieb", "Inventur", "30")

	acts := g.Activities()
	require.Len(t, acts, 2)
	assert.Equal(t, "1.3", acts[0].Hours.String())
	assert.Equal(t, "2", acts[1].Hours.String())
	assert.NoError(t, ValidateActivities(acts))
}

func TestGrid_SetSectionClearsForeignDescription(t *testing.T) {
	g := NewGrid(DefaultTemplates)
	g.SetSlot(Monday, 1, "Schule", "Berufsschulunterricht", "8")

	g.SetSection(Monday, 1, "meeting")
	s, _ := g.Slot(Monday, 1)
	assert.Equal(t, "meeting", s.Section)
	assert.Empty(t, s.Description)

	// Free text typed after the change is kept.
	g.SetDescription(Monday, 1, "Kundentermin vor Ort")
	s, _ = g.Slot(Monday, 1)
	assert.Equal(t, "Kundentermin vor Ort", s.Description)

	// A canonical description survives a case-insensitive match.
	g.SetSlot(Tuesday, 1, "Schule", "PRÜFUNGSVORBEREITUNG", "2")
	g.SetSection(Tuesday, 1, "SCHULE")
	s, _ = g.Slot(Tuesday, 1)
	assert.Equal(t, "PRÜFUNGSVORBEREITUNG", s.Description)
}

func TestGrid_RoundTripFromActivities(t *testing.T) {
	in := []Activity{
		{Day: Monday, Slot: 1, Section: "Schule", Description: "Berufsschulunterricht", Hours: decimal.RequireFromString("8")},
		{Day: Sunday, Slot: 3, Section: "Sonstiges", Description: "Urlaub", Hours: decimal.RequireFromString("2.5")},
	}
	g := GridFromActivities(DefaultTemplates, in)
	assertActivitiesEqual(t, in, g.Activities())

	g.SetHours(Sunday, 3, "")
	assert.Len(t, g.Activities(), 1)
}

func TestTemplates(t *testing.T) {
	assert.Len(t, DefaultTemplates.Descriptions("entwickeln"), 5)
	assert.Nil(t, DefaultTemplates.Descriptions("Kochen"))
	assert.True(t, DefaultTemplates.Allows("Sonstiges", "krank"))
	assert.False(t, DefaultTemplates.Allows("Schule", "Urlaub"))
}
