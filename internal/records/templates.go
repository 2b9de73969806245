package records

import (
	"strings"

	"golang.org/x/text/cases"
)

// Templates maps a section to its canonical activity descriptions.
type Templates map[string][]string

// DefaultTemplates are the sections and descriptions offered by the entry form.
var DefaultTemplates = Templates{
	"Entwickeln": {
		"Frontend-Entwicklung mit React/Next.js",
		"Backend-Entwicklung mit Java Spring Boot",
		"Datenbankdesign und SQL-Abfragen",
		"API-Integration und Testing",
		"Code-Review und Refactoring",
	},
	"Designen": {
		"UI/UX-Konzepterstellung",
		"Wireframing und Prototyping",
		"Design System Entwicklung",
		"User Research und Testing",
		"Responsive Design Implementierung",
	},
	"Meeting": {
		"Daily Standup mit Team",
		"Sprint Planning Meeting",
		"Retrospektive und Feedback",
		"Kundenpräsentation",
		"Technisches Review Meeting",
	},
	"Schule": {
		"Berufsschulunterricht",
		"Prüfungsvorbereitung",
		"Projektarbeit für Schule",
		"Fachtheorie Softwareentwicklung",
		"Selbststudium und Recherche",
	},
	"Sonstiges": {
		"Allgemeine Verwaltungstätigkeiten",
		"Teamkoordination",
		"Fortbildung und Schulungen",
		"Krank",
		"Urlaub",
	},
}

// fold builds a fresh Caser per call; a Caser is not safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Descriptions returns the canonical descriptions of section.
func (t Templates) Descriptions(section string) []string {
	key := fold(section)
	for name, list := range t {
		if fold(name) == key {
			return list
		}
	}
	return nil
}

// Allows reports whether description is canonical for section.
func (t Templates) Allows(section, description string) bool {
	want := fold(description)
	for _, d := range t.Descriptions(section) {
		if fold(d) == want {
			return true
		}
	}
	return false
}
