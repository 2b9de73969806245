package records

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/ausbildung/nachweis/internal/shared"
)

// ErrNoConverter is returned when PDF rendering is not configured.
var ErrNoConverter = fmt.Errorf("%w: pdf converter not configured", shared.ErrTransport)

var documentTemplate = template.Must(template.New("nachweis").Parse(`<!DOCTYPE html>
<html lang="de">
<head>
<meta charset="utf-8">
<title>Ausbildungsnachweis Nr. {{.Number}}</title>
<style>
body { font-family: sans-serif; font-size: 11pt; }
table { border-collapse: collapse; width: 100%; margin-bottom: 12pt; }
th, td { border: 1px solid #444; padding: 4pt; text-align: left; }
td.hours { text-align: right; width: 3cm; }
.signatures td { height: 2cm; vertical-align: bottom; }
</style>
</head>
<body>
<h1>Ausbildungsnachweis Nr. {{.Number}}</h1>
<p>Name: {{.OwnerName}}<br>Zeitraum: {{.PeriodStart}} bis {{.PeriodEnd}}<br>Status: {{.Status}}</p>
{{range .Days}}
<table>
<tr><th colspan="3">{{.Label}}</th></tr>
{{range .Slots}}<tr><td>{{.Section}}</td><td>{{.Description}}</td><td class="hours">{{.Hours}}</td></tr>
{{end}}<tr><td colspan="2">Summe</td><td class="hours">{{.Total}}</td></tr>
</table>
{{end}}
<p><strong>Gesamtstunden: {{.GrandTotal}}</strong></p>
{{if .Comment}}<p>Bemerkung: {{.Comment}}</p>{{end}}
<table class="signatures">
<tr><td>Auszubildende/r: {{.Signatures.Owner}}</td><td>Ausbilder/in: {{.Signatures.Trainer}}</td></tr>
</table>
</body>
</html>
`))

type documentDay struct {
	Label string
	Slots []Slot
	Total string
}

type documentView struct {
	Number      int
	OwnerName   string
	PeriodStart string
	PeriodEnd   string
	Status      Status
	Days        []documentDay
	GrandTotal  string
	Comment     string
	Signatures  Signatures
}

// RenderHTML produces the printable HTML of a record. Days without entries are omitted.
func RenderHTML(templates Templates, rec Record) (string, error) {
	grid := GridFromActivities(templates, rec.Activities)
	view := documentView{
		Number:      rec.Number,
		OwnerName:   rec.OwnerName,
		PeriodStart: rec.PeriodStart.Format("02.01.2006"),
		PeriodEnd:   rec.PeriodEnd.Format("02.01.2006"),
		Status:      rec.Status,
		GrandTotal:  grid.GrandTotal(),
		Signatures:  rec.Signatures,
	}
	if rec.Comment != nil {
		view.Comment = *rec.Comment
	}
	for _, day := range Weekdays {
		total, ok := grid.DayTotal(day)
		if !ok {
			continue
		}
		d := documentDay{Label: day.Label(), Total: total}
		for i := 1; i <= day.MaxSlots(); i++ {
			if s, ok := grid.Slot(day, i); ok && (s.Section != "" || s.Description != "") {
				d.Slots = append(d.Slots, s)
			}
		}
		view.Days = append(view.Days, d)
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Service) renderPDF(ctx context.Context, rec Record) ([]byte, error) {
	if s.converter == nil {
		return nil, ErrNoConverter
	}
	html, err := RenderHTML(s.templates, rec)
	if err != nil {
		return nil, err
	}
	pdf, err := s.converter.RenderHTML(ctx, html)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, shared.ErrTransport) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: render record %d: %v", shared.ErrTransport, rec.Number, err)
	}
	return pdf, nil
}
