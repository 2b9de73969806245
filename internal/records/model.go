package records

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ausbildung/nachweis/internal/shared"
)

const dateLayout = "2006-01-02"

// Date is a calendar day serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, shared.Validationf("invalid date %q", raw)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var raw *string
	if err := json.Unmarshal(b, &raw); err != nil {
		return shared.Validationf("date must be a string")
	}
	if raw == nil || *raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Signatures are the free-text signature lines printed on the document.
type Signatures struct {
	Owner   string `json:"owner"`
	Trainer string `json:"trainer"`
}

// Record is a weekly training record (Nachweis).
type Record struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"ownerId"`
	OwnerName   string     `json:"ownerName,omitempty"`
	TrainerID   uuid.UUID  `json:"trainerId"`
	Number      int        `json:"number"`
	PeriodStart Date       `json:"periodStart"`
	PeriodEnd   Date       `json:"periodEnd"`
	Activities  []Activity `json:"activities,omitempty"`
	Status      Status     `json:"status"`
	Comment     *string    `json:"comment,omitempty"`
	Signatures  Signatures `json:"signatures"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsOwner reports whether p owns the record.
func (r *Record) IsOwner(p shared.Principal) bool { return r.OwnerID == p.UserID }

// IsTrainer reports whether p is the assigned trainer. Azubis never qualify,
// even when named as trainerId.
func (r *Record) IsTrainer(p shared.Principal) bool {
	return r.TrainerID == p.UserID && p.Role != shared.RoleAzubi
}

// CanRead reports whether p may see the record.
func (r *Record) CanRead(p shared.Principal) bool {
	return p.IsAdmin() || r.IsOwner(p) || r.IsTrainer(p)
}

// CanReview reports whether p may change status or comment.
func (r *Record) CanReview(p shared.Principal) bool {
	return p.IsAdmin() || (p.Role == shared.RoleAusbilder && r.IsTrainer(p))
}

// ListFilter narrows record listings. Page is zero based.
type ListFilter struct {
	OwnerID   *uuid.UUID
	TrainerID *uuid.UUID
	Status    *Status
	Page      int
	Size      int
	SortBy    string
	SortDir   string
}

// Page is one page of records.
type Page struct {
	Content []Record `json:"content"`
	shared.Pagination
}

// AuditEvent is appended to nachweis_audit_logs for every mutation.
type AuditEvent struct {
	RecordID uuid.UUID
	Action   string
	Actor    string
	Details  map[string]any
}
