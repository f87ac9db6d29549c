package db

import (
	"time"

	"gorm.io/gorm"
)

// Donation statuses. A donation never leaves "completed" through this code.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

type Donation struct {
	gorm.Model
	PaymentReference string  `gorm:"size:64;uniqueIndex"` // shared with the donor, correlates gateway callbacks
	SessionID        string  `gorm:"size:64"`
	BillCode         *string `gorm:"size:32"` // set once the gateway bill exists
	TransactionID    *string `gorm:"size:64"` // set on completion

	AmountCents int64 // minor units
	Currency    string `gorm:"size:8"`

	DonorName  string `gorm:"size:100"`
	DonorEmail string `gorm:"size:100"`
	DonorPhone string `gorm:"size:20"`
	Anonymous  bool
	Message    string `gorm:"size:500"`

	ProjectID *uint // nil = general fund

	Status        string `gorm:"size:16;default:'pending'"`
	AttemptCount  int
	FailureReason *string `gorm:"size:255"`

	ReceiptNumber *string `gorm:"size:32"` // assigned exactly once, with completion
	CompletedAt   *time.Time
	ReceiptSentAt *time.Time

	Environment  string `gorm:"size:16"` // sandbox or production, frozen at creation
	DonationType string `gorm:"size:32"`
}

type Project struct {
	gorm.Model
	Title           string `gorm:"size:200"`
	Description     string
	DonationEnabled bool
	CategoryCode    string `gorm:"size:32"` // gateway billing category for this project
	TargetAmount    int64  // minor units
	DonationRaised  int64  // minor units, only ever incremented
}

// DonationEvent rows are append-only; nothing updates or deletes them.
type DonationEvent struct {
	ID         uint   `gorm:"primarykey"`
	DonationID uint   `gorm:"index"`
	EventType  string `gorm:"size:48"`
	Payload    string `gorm:"type:text"` // JSON
	CreatedAt  time.Time
}
