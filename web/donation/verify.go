package donation

import (
	"log"
	"time"

	"insanprihatin/web/db"
	"insanprihatin/web/email"
	"insanprihatin/web/toyyibpay"
)

type VerifyResult struct {
	Donation      *db.Donation
	Verified      bool // independently confirmed (locally completed, or against the gateway)
	AutoRecovered bool
	Transaction   *toyyibpay.BillTransaction
}

// Verify determines the authoritative status of a donation. The local record
// wins when it already says completed; otherwise the gateway is consulted,
// and a payment the gateway knows about but the local record missed (a lost
// webhook) is healed on the spot.
func (s *Service) Verify(reference string) (*VerifyResult, error) {
	d, err := s.Store.DonationByReference(reference)
	if err != nil {
		return nil, ErrNotFound
	}

	// fast path: a completed donation needs no gateway round-trip
	if d.Status == db.StatusCompleted {
		return &VerifyResult{Donation: d, Verified: true}, nil
	}

	if d.BillCode == nil || !s.Gateway.IsConfigured() {
		return &VerifyResult{Donation: d, Verified: false}, nil
	}

	txs, err := s.Gateway.GetBillTransactions(*d.BillCode)
	if err != nil {
		// gateway unreachable: degrade to last-known local state
		log.Println("gateway transaction lookup failed:", reference, err)
		return &VerifyResult{Donation: d, Verified: false}, nil
	}
	if len(txs) == 0 {
		return &VerifyResult{Donation: d, Verified: false}, nil
	}

	tx := txs[0]
	mapped := s.Gateway.MapPaymentStatus(tx.BillPaymentStatus)

	if mapped == db.StatusCompleted {
		// the gateway says paid but our record does not: the callback was lost
		s.logEvent(d.ID, EventVerificationDiscrepancy, DiscrepancyPayload{
			LocalStatus:   d.Status,
			GatewayStatus: tx.BillPaymentStatus,
			TransactionID: tx.BillPaymentInvoiceNo,
		})
		updated, recovered, err := s.Complete(d, Completion{
			TransactionID: tx.BillPaymentInvoiceNo,
			GatewayStatus: tx.BillPaymentStatus,
			Reason:        "webhook callback likely failed",
			Event:         EventAutoRecoveryCompleted,
		})
		if err != nil {
			return nil, err
		}
		return &VerifyResult{Donation: updated, Verified: true, AutoRecovered: recovered, Transaction: &tx}, nil
	}

	// gateway shows pending or failed: report it, mutate nothing
	return &VerifyResult{Donation: d, Verified: true, Transaction: &tx}, nil
}

// Completion describes what triggered a completed transition.
type Completion struct {
	TransactionID string
	GatewayStatus string
	Reason        string
	UpdatedBy     string
	Event         string // EventAutoRecoveryCompleted or EventStatusUpdated
}

// Complete flips a donation to completed exactly once and applies the side
// effects owned by that transition: receipt number, project ledger increment,
// audit event and receipt email. The webhook handler, the verification engine
// and the admin status update all funnel through here. Losers of the status
// race get the fresh row back and skip every side effect.
func (s *Service) Complete(d *db.Donation, trig Completion) (*db.Donation, bool, error) {
	now := time.Now()
	receiptNo := receiptNumber(d, now)

	applied, err := s.Store.CompleteDonation(d.ID, receiptNo, trig.TransactionID, now)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		// someone else completed it first; re-read rather than re-apply
		fresh, err := s.Store.DonationByReference(d.PaymentReference)
		if err != nil {
			return nil, false, err
		}
		return fresh, false, nil
	}

	prevStatus := d.Status
	d.Status = db.StatusCompleted
	d.CompletedAt = &now
	d.ReceiptNumber = &receiptNo
	if trig.TransactionID != "" {
		txID := trig.TransactionID
		d.TransactionID = &txID
	}

	if d.ProjectID != nil {
		if err := s.Store.AddToRaised(*d.ProjectID, d.AmountCents); err != nil {
			return nil, false, err
		}
	}

	if trig.Event == EventAutoRecoveryCompleted {
		s.logEvent(d.ID, EventAutoRecoveryCompleted, AutoRecoveryPayload{
			PreviousStatus: prevStatus,
			NewStatus:      db.StatusCompleted,
			GatewayStatus:  trig.GatewayStatus,
			TransactionID:  trig.TransactionID,
			ReceiptNumber:  receiptNo,
			Reason:         trig.Reason,
		})
	} else {
		s.logEvent(d.ID, EventStatusUpdated, StatusUpdatedPayload{
			PreviousStatus: prevStatus,
			NewStatus:      db.StatusCompleted,
			ReceiptNumber:  receiptNo,
			TransactionID:  trig.TransactionID,
			Reason:         trig.Reason,
			UpdatedBy:      trig.UpdatedBy,
		})
	}

	s.sendReceipt(d)

	return d, true, nil
}

// sendReceipt delivers the receipt email. Failures are recorded but never
// propagate; the donation stays completed either way.
func (s *Service) sendReceipt(d *db.Donation) {
	if d.DonorEmail == "" || d.ReceiptNumber == nil || d.CompletedAt == nil {
		return
	}

	projectTitle := ""
	if d.ProjectID != nil {
		if p, err := s.Store.ProjectByID(*d.ProjectID); err == nil {
			projectTitle = p.Title
		}
	}

	res := s.Mailer.SendReceipt(email.ReceiptData{
		DonorName:     d.DonorName,
		DonorEmail:    d.DonorEmail,
		Amount:        float64(d.AmountCents) / 100,
		Currency:      d.Currency,
		Reference:     d.PaymentReference,
		ReceiptNumber: *d.ReceiptNumber,
		ProjectTitle:  projectTitle,
		CompletedAt:   *d.CompletedAt,
	})
	if res.Success {
		now := time.Now()
		if err := s.Store.StampReceiptSent(d.ID, now); err != nil {
			log.Println("failed to stamp receipt sent:", d.PaymentReference, err)
		} else {
			d.ReceiptSentAt = &now
		}
		s.logEvent(d.ID, EventReceiptEmailSent, ReceiptEmailPayload{Recipient: d.DonorEmail})
	} else {
		s.logEvent(d.ID, EventReceiptEmailFailed, ReceiptEmailPayload{Recipient: d.DonorEmail, Error: res.Err})
	}
}

// CallbackInput is the form payload toyyibpay posts after a payment attempt.
type CallbackInput struct {
	RefNo   string // gateway transaction id
	Status  string // 1 success, 2 pending, 3 fail
	Reason  string
	OrderID string // our payment reference (billExternalReferenceNo)
}

// HandleCallback drives the same completion transition as auto-recovery from
// the gateway's asynchronous confirmation.
func (s *Service) HandleCallback(cb CallbackInput) error {
	d, err := s.Store.DonationByReference(cb.OrderID)
	if err != nil {
		return ErrNotFound
	}

	switch s.Gateway.MapPaymentStatus(cb.Status) {
	case db.StatusCompleted:
		if d.Status == db.StatusCompleted {
			return nil // replayed callback
		}
		_, _, err := s.Complete(d, Completion{
			TransactionID: cb.RefNo,
			GatewayStatus: cb.Status,
			Reason:        "gateway callback",
			UpdatedBy:     "toyyibpay",
			Event:         EventStatusUpdated,
		})
		return err
	case db.StatusFailed:
		reason := cb.Reason
		if reason == "" {
			reason = "gateway reported unsuccessful payment"
		}
		applied, err := s.Store.MarkFailed(d.ID, reason)
		if err != nil {
			return err
		}
		if applied {
			s.logEvent(d.ID, EventStatusUpdated, StatusUpdatedPayload{
				PreviousStatus: d.Status,
				NewStatus:      db.StatusFailed,
				TransactionID:  cb.RefNo,
				Reason:         reason,
				UpdatedBy:      "toyyibpay",
			})
		}
		return nil
	default:
		return nil // still pending, nothing to record
	}
}

// UpdateStatus is the trusted admin path: same transition rules as the
// recovery path, no gateway consultation.
func (s *Service) UpdateStatus(reference, status, reason, updatedBy string) (*db.Donation, error) {
	switch status {
	case db.StatusPending, db.StatusCompleted, db.StatusFailed, db.StatusRefunded:
	default:
		return nil, &ValidationError{"status must be one of pending, completed, failed, refunded"}
	}

	d, err := s.Store.DonationByReference(reference)
	if err != nil {
		return nil, ErrNotFound
	}

	switch status {
	case db.StatusCompleted:
		updated, _, err := s.Complete(d, Completion{
			Reason:    reason,
			UpdatedBy: updatedBy,
			Event:     EventStatusUpdated,
		})
		return updated, err

	case db.StatusFailed:
		if reason == "" {
			reason = "marked as failed by admin"
		}
		applied, err := s.Store.MarkFailed(d.ID, reason)
		if err != nil {
			return nil, err
		}
		if applied {
			s.logEvent(d.ID, EventStatusUpdated, StatusUpdatedPayload{
				PreviousStatus: d.Status,
				NewStatus:      db.StatusFailed,
				Reason:         reason,
				UpdatedBy:      updatedBy,
			})
			d.Status = db.StatusFailed
			d.FailureReason = &reason
		}
		return d, nil

	case db.StatusRefunded:
		applied, err := s.Store.MarkRefunded(d.ID, reason)
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, &ValidationError{"only completed donations can be refunded"}
		}
		s.logEvent(d.ID, EventStatusUpdated, StatusUpdatedPayload{
			PreviousStatus: d.Status,
			NewStatus:      db.StatusRefunded,
			Reason:         reason,
			UpdatedBy:      updatedBy,
		})
		d.Status = db.StatusRefunded
		return d, nil

	default: // pending
		if d.Status != db.StatusPending {
			return nil, &ValidationError{"donations cannot be moved back to pending"}
		}
		return d, nil
	}
}
