// Package audit membaca jejak audit Nachweis dan peran, lalu menormalkan
// berbagai bentuk payload menjadi satu bentuk Entry.
package audit

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry adalah bentuk kanonik satu baris audit.
type Entry struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subjectId"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Probe lists, urutan menentukan prioritas.
var (
	timeKeys = []string{
		"aktionsZeit", "performedAt", "zeit", "timestamp", "createdAt", "time", "date",
		"performed_at", "created_at", "changed_at", "occurred_at",
	}
	actorKeys = []string{
		"benutzerName", "performedBy", "userName", "username", "changedBy", "changedByName", "name",
		"performed_by", "changed_by",
	}
	actionKeys = []string{"aktion", "action", "details", "message", "role", "rolle", "change"}
	subjectKeys = []string{
		"nachweisId", "targetUsername", "recordId", "roleId", "roleName", "id",
		"nachweis_id", "target_username", "record_id",
	}
	idKeys    = []string{"id", "auditId", "audit_id"}
	totalKeys = [][]string{
		{"total"}, {"totalElements"}, {"meta", "total"}, {"audits", "total"}, {"audits", "totalElements"},
	}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Normalizer mengubah item audit mentah menjadi Entry. Tidak pernah gagal.
type Normalizer struct {
	Now   func() time.Time
	NewID func() string
}

var defaultNormalizer = Normalizer{}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now().UTC()
}

func (n Normalizer) newID() string {
	if n.NewID != nil {
		return n.NewID()
	}
	return uuid.NewString()
}

// Normalize memetakan satu item mentah ke Entry.
func Normalize(raw any) Entry { return defaultNormalizer.Normalize(raw) }

// NormalizePayload membuka payload lalu menormalkan setiap item.
func NormalizePayload(payload any) []Entry { return defaultNormalizer.NormalizePayload(payload) }

// Normalize memetakan satu item mentah ke Entry.
func (n Normalizer) Normalize(raw any) Entry {
	obj, ok := asObject(raw)
	if !ok {
		return Entry{ID: n.newID(), Action: marshalString(decoded(raw)), OccurredAt: n.now()}
	}
	e := Entry{
		ID:        probeString(obj, idKeys),
		SubjectID: probeString(obj, subjectKeys),
		Actor:     probeString(obj, actorKeys),
		Action:    probeString(obj, actionKeys),
	}
	if e.ID == "" {
		e.ID = n.newID()
	}
	if e.Action == "" {
		e.Action = marshalString(obj)
	}
	if v, ok := probe(obj, timeKeys); ok {
		if t, ok := parseTime(v); ok {
			e.OccurredAt = t
		}
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = n.now()
	}
	return e
}

// NormalizePayload membuka payload lalu menormalkan setiap item.
func (n Normalizer) NormalizePayload(payload any) []Entry {
	items := Unwrap(payload)
	out := make([]Entry, 0, len(items))
	for _, item := range items {
		out = append(out, n.Normalize(item))
	}
	return out
}

// Unwrap menerima array langsung, items, data, atau audits.items. Selain itu kosong.
func Unwrap(payload any) []any {
	payload = decoded(payload)
	if list, ok := asList(payload); ok {
		return list
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return []any{}
	}
	for _, key := range []string{"items", "data"} {
		if list, ok := asList(obj[key]); ok {
			return list
		}
	}
	if audits, ok := obj["audits"].(map[string]any); ok {
		if list, ok := asList(audits["items"]); ok {
			return list
		}
	}
	return []any{}
}

// Total mencari jumlah total di payload berpaging.
func Total(payload any) (int, bool) {
	obj, ok := decoded(payload).(map[string]any)
	if !ok {
		return 0, false
	}
	for _, path := range totalKeys {
		var cur any = obj
		for _, key := range path {
			m, ok := cur.(map[string]any)
			if !ok {
				cur = nil
				break
			}
			cur = m[key]
		}
		if n, ok := asInt(cur); ok {
			return n, true
		}
	}
	return 0, false
}

// Recent mengurutkan entry dari yang terbaru lalu mengambil n pertama.
func Recent(entries []Entry, n int) []Entry {
	if n <= 0 {
		return []Entry{}
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// decoded mengurai json.RawMessage dan []byte; nilai lain dikembalikan apa adanya.
func decoded(v any) any {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	return out
}

func asObject(v any) (map[string]any, bool) {
	switch t := decoded(v).(type) {
	case map[string]any:
		return t, true
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return m, true
	default:
		return nil, false
	}
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	case []json.RawMessage:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func probe(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func probeString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return marshalString(t)
	}
}

func marshalString(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}

// parseTime menerima string ISO, epoch (detik atau milidetik), dan array [y,m,d,h,mi,s,ns].
func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromEpoch(n), true
		}
		return time.Time{}, false
	case float64:
		return fromEpoch(int64(t)), true
	case int64:
		return fromEpoch(t), true
	case int:
		return fromEpoch(int64(t)), true
	case []any:
		return fromParts(t)
	default:
		return time.Time{}, false
	}
}

func fromEpoch(n int64) time.Time {
	if n > 1e12 || n < -1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func fromParts(parts []any) (time.Time, bool) {
	if len(parts) < 3 {
		return time.Time{}, false
	}
	vals := make([]int, 7)
	for i := 0; i < len(parts) && i < 7; i++ {
		n, ok := asInt(parts[i])
		if !ok {
			return time.Time{}, false
		}
		vals[i] = n
	}
	if vals[1] < 1 || vals[1] > 12 || vals[2] < 1 || vals[2] > 31 {
		return time.Time{}, false
	}
	return time.Date(vals[0], time.Month(vals[1]), vals[2], vals[3], vals[4], vals[5], vals[6], time.UTC), true
}
