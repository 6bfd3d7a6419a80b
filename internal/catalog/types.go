package catalog

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound  = errors.New("catalog: not found")
	ErrDuplicate = errors.New("catalog: already exists")
	ErrModerated = errors.New("catalog: link already moderated")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Millis is a time stored as INTEGER unix milliseconds.
type Millis struct{ time.Time }

func Now() Millis { return Millis{time.Now().Truncate(time.Millisecond)} }

func (m Millis) Value() (driver.Value, error) {
	if m.IsZero() {
		return nil, nil
	}
	return m.UnixMilli(), nil
}

func (m *Millis) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		m.Time = time.Time{}
	case int64:
		m.Time = time.UnixMilli(v)
	default:
		return fmt.Errorf("catalog: cannot scan %T into Millis", src)
	}
	return nil
}

type User struct {
	ID        int64   `db:"user_id"`
	Username  *string `db:"username"`
	FirstName *string `db:"first_name"`
	Role      string  `db:"role"`
	CreatedAt Millis  `db:"created_at"`
}

type Category struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Emoji    string `db:"emoji" json:"emoji"`
	Position int    `db:"position" json:"-"`
	Active   bool   `db:"is_active" json:"-"`
	// Links counts approved links. Filled by ListCategories.
	Links int `db:"links_count" json:"-"`
}

// Label renders "emoji name".
func (c Category) Label() string {
	if c.Emoji == "" {
		return c.Name
	}
	return c.Emoji + " " + c.Name
}

type Link struct {
	ID              int64   `db:"id"`
	CategoryID      *int64  `db:"category_id"`
	UserID          *int64  `db:"user_id"`
	Name            string  `db:"name"`
	URL             string  `db:"url"`
	Description     *string `db:"description"`
	Status          Status  `db:"status"`
	RejectionReason *string `db:"rejection_reason"`
	Clicks          int64   `db:"clicks_count"`
	CreatedAt       Millis  `db:"created_at"`
	ModeratedAt     *Millis `db:"moderated_at"`

	// Joined columns; empty when the link has no category or author row.
	CategoryName   string `db:"category_name"`
	CategoryEmoji  string `db:"category_emoji"`
	AuthorUsername string `db:"author_username"`
	AuthorName     string `db:"author_name"`
}

// NewLink is the insert shape for AddLink.
type NewLink struct {
	CategoryID  *int64
	UserID      *int64
	Name        string
	URL         string
	Description *string
	Status      Status
}

// LinkEdit is the change set for UpdateLink.
type LinkEdit struct {
	Name        *string
	URL         *string
	Description *string
	CategoryID  *int64
}

type Stats struct {
	Users      int `db:"users"`
	Categories int `db:"categories"`
	Approved   int `db:"approved"`
	Pending    int `db:"pending"`
	Rejected   int `db:"rejected"`
	Clicks     int `db:"clicks"`
	Reactions  int `db:"reactions"`
}

// AuditEntry records a moderation or admin action.
type AuditEntry struct {
	ID      string  `db:"id"`
	At      Millis  `db:"at"`
	ActorID int64   `db:"actor_id"`
	Action  string  `db:"action"`
	Target  string  `db:"target"`
	Meta    *string `db:"meta"`
}
