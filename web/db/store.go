package db

import (
	"time"

	"gorm.io/gorm"
)

// Store exposes the donation tables to the donation package. Status
// transitions are conditional updates so concurrent callers cannot
// double-apply them.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

func (s *Store) DonationByReference(ref string) (*Donation, error) {
	var d Donation
	if err := s.db.First(&d, "payment_reference = ?", ref).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) CreateDonation(d *Donation) error {
	return s.db.Create(d).Error
}

func (s *Store) SetBillCode(id uint, code string) error {
	return s.db.Model(&Donation{}).Where("id = ?", id).Update("bill_code", code).Error
}

// CompleteDonation flips a donation to completed in one conditional update,
// setting the completion timestamp, receipt number and transaction id
// together. Returns false when another caller already completed it.
func (s *Store) CompleteDonation(id uint, receiptNumber, transactionID string, at time.Time) (bool, error) {
	fields := map[string]interface{}{
		"status":         StatusCompleted,
		"completed_at":   at,
		"receipt_number": receiptNumber,
	}
	if transactionID != "" {
		fields["transaction_id"] = transactionID
	}

	res := s.db.Model(&Donation{}).
		Where("id = ? AND status <> ?", id, StatusCompleted).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed is a no-op on donations that already completed.
func (s *Store) MarkFailed(id uint, reason string) (bool, error) {
	res := s.db.Model(&Donation{}).
		Where("id = ? AND status <> ?", id, StatusCompleted).
		Updates(map[string]interface{}{
			"status":         StatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkRefunded only applies to completed donations; refunds of anything
// else make no sense.
func (s *Store) MarkRefunded(id uint, reason string) (bool, error) {
	res := s.db.Model(&Donation{}).
		Where("id = ? AND status = ?", id, StatusCompleted).
		Updates(map[string]interface{}{
			"status":         StatusRefunded,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) StampReceiptSent(id uint, at time.Time) error {
	return s.db.Model(&Donation{}).Where("id = ?", id).Update("receipt_sent_at", at).Error
}

func (s *Store) ProjectByID(id uint) (*Project, error) {
	var p Project
	if err := s.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// AddToRaised increments the accumulator inside the database, so concurrent
// completions against the same project never lose updates.
func (s *Store) AddToRaised(projectID uint, cents int64) error {
	return s.db.Model(&Project{}).Where("id = ?", projectID).
		UpdateColumn("donation_raised", gorm.Expr("donation_raised + ?", cents)).Error
}

func (s *Store) AppendEvent(donationID uint, eventType, payload string) error {
	ev := DonationEvent{
		DonationID: donationID,
		EventType:  eventType,
		Payload:    payload,
		CreatedAt:  time.Now(),
	}
	return s.db.Create(&ev).Error
}
