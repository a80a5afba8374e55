package model

import (
	"strconv"
	"time"
)

// Item is a donated object moving through approval and reservation.
type Item struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	Condition   string    `json:"condition" db:"condition"`
	Status      string    `json:"status" db:"status"`
	Donor       string    `json:"donor" db:"donor"`
	ReservedBy  string    `json:"reserved_by,omitempty" db:"reserved_by"`
	ClaimedBy   string    `json:"claimed_by,omitempty" db:"claimed_by"`
	Approved    bool      `json:"approved" db:"approved"`
	Images      []string  `json:"images" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ImageFolder is the per-item photo directory name.
func (i *Item) ImageFolder() string {
	return strconv.FormatInt(i.ID, 10)
}

// Item statuses.
const (
	StatusPendingApproval = "Pending Approval"
	StatusAvailable       = "Available"
	StatusReserved        = "Reserved"
	StatusTaken           = "Taken"
)

// NormalizeStatus maps legacy spellings onto the canonical vocabulary.
// Unknown values are returned unchanged with ok=false.
func NormalizeStatus(s string) (string, bool) {
	switch s {
	case StatusPendingApproval, "Pending Aproval", "pending":
		return StatusPendingApproval, true
	case StatusAvailable, "approved", "available":
		return StatusAvailable, true
	case StatusReserved, "reserved":
		return StatusReserved, true
	case StatusTaken, "taken":
		return StatusTaken, true
	default:
		return s, false
	}
}

// Notification is an append-only message for a user.
type Notification struct {
	ID        string    `json:"id" db:"id"`
	UserEmail string    `json:"-" db:"user_email"`
	Type      string    `json:"type" db:"type"`
	ItemID    int64     `json:"item_id" db:"item_id"`
	ItemName  string    `json:"item_name" db:"item_name"`
	Message   string    `json:"message" db:"message"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"timestamp" db:"created_at"`
}

// Notification types.
const (
	NotificationItemRejected = "item_rejected"
)
