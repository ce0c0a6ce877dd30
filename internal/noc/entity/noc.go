package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a certificate.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusRevoked:
		return true
	}
	return false
}

// DateLayout is the wire and storage format of certificate dates.
const DateLayout = "2006-01-02"

// Date is a calendar day, encoded as "YYYY-MM-DD" in JSON and stored in a
// DATE column.
type Date struct {
	time.Time
}

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts "YYYY-MM-DD" or an RFC 3339 timestamp, keeping the day.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return NewDate(t.Date()), nil
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v.Date())
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

func (d *Date) scanString(s string) error {
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Certificate is a row of `noc_certificates`. Trades is filled in for
// single-certificate reads.
type Certificate struct {
	ID                int64        `db:"id" json:"id"`
	InstituteName     string       `db:"institute_name" json:"institute_name"`
	CompleteAddress   string       `db:"complete_address" json:"complete_address"`
	ApplicationNumber string       `db:"application_number" json:"application_number"`
	MISCode           *string      `db:"mis_code" json:"mis_code"`
	Category          string       `db:"category" json:"category"`
	StateName         string       `db:"state_name" json:"state_name"`
	IssueDate         Date         `db:"issue_date" json:"issue_date"`
	ExpiryDate        Date         `db:"expiry_date" json:"expiry_date"`
	Status            Status       `db:"status" json:"status"`
	Remarks           *string      `db:"remarks" json:"remarks"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
	Trades            []Allocation `db:"-" json:"trades"`
}

// Summary is a certificate in a list view; its trades are folded into a
// single "Name (S1:x, S2:y), ..." string.
type Summary struct {
	Certificate
	Trades string `db:"trades" json:"trades"`
}

// Allocation is a row of `noc_trades`: a trade and its unit counts per shift.
type Allocation struct {
	ID          int64     `db:"id" json:"id"`
	NOCID       int64     `db:"noc_id" json:"noc_id"`
	TradeName   string    `db:"trade_name" json:"trade_name"`
	Shift1Units int       `db:"shift_1_units" json:"shift_1_units"`
	Shift2Units int       `db:"shift_2_units" json:"shift_2_units"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Bucket is one group of a statistics breakdown.
type Bucket struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

type Statistics struct {
	Total             int      `json:"total"`
	StatusBreakdown   []Bucket `json:"statusBreakdown"`
	StateBreakdown    []Bucket `json:"stateBreakdown"`
	CategoryBreakdown []Bucket `json:"categoryBreakdown"`
	ExpiringSoon      int      `json:"expiringSoon"`
}
