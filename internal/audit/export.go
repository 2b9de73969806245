package audit

import (
	"bytes"
	"encoding/csv"
	"time"
)

var csvHeader = []string{"id", "subject_id", "action", "actor", "occurred_at"}

// WriteCSV menulis entry audit sebagai CSV.
func WriteCSV(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := w.Write([]string{e.ID, e.SubjectID, e.Action, e.Actor, e.OccurredAt.UTC().Format(time.RFC3339)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
