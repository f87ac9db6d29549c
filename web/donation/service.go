// Donation lifecycle: created pending, completed exactly once by either the
// gateway callback or the verification engine, optionally failed by a
// gateway-reported failure or an admin update.

package donation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"time"

	"insanprihatin/web/db"
	"insanprihatin/web/email"
	"insanprihatin/web/toyyibpay"

	"github.com/google/uuid"
)

// Donation bounds in major units. Larger donors are directed to contact us
// instead of paying through the gateway.
const (
	MinAmount = 1.0
	MaxAmount = 100000.0

	DefaultCurrency = "MYR"

	referencePrefix = "DON"
)

var (
	ErrNotFound           = errors.New("donation not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrGatewayUnavailable = errors.New("payment gateway is unavailable, please try again later")
)

// ValidationError marks client-caused input failures; handlers answer 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Store is the slice of the database the donation core mutates.
type Store interface {
	DonationByReference(ref string) (*db.Donation, error)
	CreateDonation(d *db.Donation) error
	SetBillCode(id uint, code string) error
	CompleteDonation(id uint, receiptNumber, transactionID string, at time.Time) (bool, error)
	MarkFailed(id uint, reason string) (bool, error)
	MarkRefunded(id uint, reason string) (bool, error)
	StampReceiptSent(id uint, at time.Time) error
	ProjectByID(id uint) (*db.Project, error)
	AddToRaised(projectID uint, cents int64) error
	AppendEvent(donationID uint, eventType, payload string) error
}

type Gateway interface {
	IsConfigured() bool
	Environment() string
	CreateBill(p toyyibpay.BillParams) (string, error)
	GetBillTransactions(billCode string) ([]toyyibpay.BillTransaction, error)
	MapPaymentStatus(code string) string
	GetOrCreateCategory() (string, error)
	PaymentURL(billCode string) string
}

type Mailer interface {
	SendReceipt(data email.ReceiptData) email.Result
}

// BankDetails are the manual-transfer instructions returned when the gateway
// is not configured. Reference is filled per donation.
type BankDetails struct {
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	Reference     string `json:"reference"`
}

type Service struct {
	Store   Store
	Gateway Gateway
	Mailer  Mailer

	SiteURL string // public base URL for return/callback links
	Bank    BankDetails
}

type CreateInput struct {
	Name         string
	Email        string
	Phone        string
	Amount       float64 // major units
	Currency     string
	ProjectID    *uint
	Message      string
	Anonymous    bool
	DonationType string
}

type CreateResult struct {
	Donation      *db.Donation
	PaymentMethod string // "toyyibpay" or "manual"
	RedirectURL   string
	BankDetails   *BankDetails
}

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[0-9+\-() ]{8,20}$`)
)

// Create validates the input, inserts a pending donation and either opens a
// gateway bill or falls back to manual bank-transfer instructions.
func (s *Service) Create(in CreateInput) (*CreateResult, error) {
	currency := in.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	if in.Amount <= 0 {
		return nil, &ValidationError{"donation amount is required"}
	}
	if in.Amount < MinAmount {
		return nil, &ValidationError{fmt.Sprintf("minimum donation amount is %s %.0f", currency, MinAmount)}
	}
	if in.Amount > MaxAmount {
		return nil, &ValidationError{fmt.Sprintf("maximum online donation is %s %.0f, please contact us directly for larger donations", currency, MaxAmount)}
	}
	if !in.Anonymous && (strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "") {
		return nil, &ValidationError{"name and email are required for non-anonymous donations"}
	}
	if in.Email != "" && !emailRe.MatchString(in.Email) {
		return nil, &ValidationError{"invalid email address"}
	}
	if in.Phone != "" && !phoneRe.MatchString(in.Phone) {
		return nil, &ValidationError{"invalid phone number"}
	}

	var project *db.Project
	if in.ProjectID != nil {
		p, err := s.Store.ProjectByID(*in.ProjectID)
		if err != nil {
			return nil, ErrProjectNotFound
		}
		if !p.DonationEnabled {
			return nil, &ValidationError{"donations are not enabled for this project"}
		}
		project = p
	}

	donationType := in.DonationType
	if donationType == "" {
		donationType = "one_time"
	}

	d := &db.Donation{
		PaymentReference: NewReference(),
		SessionID:        uuid.New().String(),
		AmountCents:      int64(math.Round(in.Amount * 100)), // donors give two decimal places at most
		Currency:         currency,
		DonorName:        strings.TrimSpace(in.Name),
		DonorEmail:       strings.TrimSpace(in.Email),
		DonorPhone:       strings.TrimSpace(in.Phone),
		Anonymous:        in.Anonymous,
		Message:          in.Message,
		ProjectID:        in.ProjectID,
		Status:           db.StatusPending,
		AttemptCount:     1,
		Environment:      s.Gateway.Environment(),
		DonationType:     donationType,
	}

	if err := s.Store.CreateDonation(d); err != nil {
		return nil, err
	}

	s.logEvent(d.ID, EventCreated, CreatedPayload{
		Amount:      d.AmountCents,
		Currency:    d.Currency,
		ProjectID:   d.ProjectID,
		Anonymous:   d.Anonymous,
		Environment: d.Environment,
	})

	if !s.Gateway.IsConfigured() {
		// degraded mode: no gateway, donor transfers manually using the
		// payment reference as the transfer memo
		s.logEvent(d.ID, EventManualPayment, ManualPaymentPayload{
			Reference: d.PaymentReference,
			Reason:    "payment gateway not configured",
		})
		bank := s.Bank
		bank.Reference = d.PaymentReference
		return &CreateResult{Donation: d, PaymentMethod: "manual", BankDetails: &bank}, nil
	}

	categoryCode := ""
	if project != nil && project.CategoryCode != "" {
		categoryCode = project.CategoryCode
	} else {
		code, err := s.Gateway.GetOrCreateCategory()
		if err != nil {
			s.logGatewayError(d.ID, "resolve_category", err)
			return nil, ErrGatewayUnavailable
		}
		categoryCode = code
	}

	billName := "Donation"
	billDesc := fmt.Sprintf("Donation %s", d.PaymentReference)
	if project != nil {
		billName = "Donation - " + project.Title
		billDesc = fmt.Sprintf("Donation %s to %s", d.PaymentReference, project.Title)
	}

	billCode, err := s.Gateway.CreateBill(toyyibpay.BillParams{
		CategoryCode:      categoryCode,
		Name:              billName,
		Description:       billDesc,
		AmountCents:       d.AmountCents,
		ReturnURL:         s.SiteURL + "/donate/thank-you?reference=" + d.PaymentReference,
		CallbackURL:       s.SiteURL + "/api/donations/callback",
		ExternalReference: d.PaymentReference,
		PayerName:         d.DonorName,
		PayerEmail:        d.DonorEmail,
		PayerPhone:        d.DonorPhone,
	})
	if err != nil {
		// the pending row is kept so the donation can be retried or reconciled
		s.logGatewayError(d.ID, "create_bill", err)
		return nil, ErrGatewayUnavailable
	}

	if err := s.Store.SetBillCode(d.ID, billCode); err != nil {
		return nil, err
	}
	d.BillCode = &billCode

	payURL := s.Gateway.PaymentURL(billCode)
	s.logEvent(d.ID, EventBillCreated, BillCreatedPayload{
		BillCode:     billCode,
		CategoryCode: categoryCode,
		PaymentURL:   payURL,
	})

	return &CreateResult{Donation: d, PaymentMethod: "toyyibpay", RedirectURL: payURL}, nil
}

// NewReference builds a globally unique, human-shareable payment reference.
// The millisecond timestamp plus a random suffix makes collisions practically
// impossible without a uniqueness check.
func NewReference() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("%s-%d-%s", referencePrefix, time.Now().UnixMilli(), suffix)
}

// receiptNumber derives the receipt number from the donation row id, which
// makes it unique and stable without a separate sequence.
func receiptNumber(d *db.Donation, at time.Time) string {
	return fmt.Sprintf("RCP-%d-%06d", at.Year(), d.ID)
}

// logEvent appends to the donation event log. Event writes are best-effort;
// a failed write never fails the surrounding transition.
func (s *Service) logEvent(donationID uint, eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Println("donation event payload marshal failed:", eventType, err)
		return
	}
	if err := s.Store.AppendEvent(donationID, eventType, string(raw)); err != nil {
		log.Println("donation event write failed:", eventType, err)
	}
}

func (s *Service) logGatewayError(donationID uint, stage string, err error) {
	code := "GATEWAY_ERROR"
	var apiErr *toyyibpay.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	}
	s.logEvent(donationID, EventGatewayError, GatewayErrorPayload{
		Code:    code,
		Message: err.Error(),
		Stage:   stage,
	})
}
