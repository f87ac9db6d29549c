package donation

import (
	"errors"
	"sync"
	"time"

	"insanprihatin/web/db"
	"insanprihatin/web/email"
	"insanprihatin/web/toyyibpay"

	"gorm.io/gorm"
)

// in-memory store with the same conditional-update semantics as the GORM one
type fakeStore struct {
	mu       sync.Mutex
	nextID   uint
	byRef    map[string]*db.Donation
	projects map[uint]*db.Project
	events   []fakeEvent

	failEvents bool // AppendEvent returns an error

	completeApplied int // conditional completion updates that took effect
	raisedAdds      int
}

type fakeEvent struct {
	donationID uint
	eventType  string
	payload    string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byRef:    make(map[string]*db.Donation),
		projects: make(map[uint]*db.Project),
	}
}

func (s *fakeStore) DonationByReference(ref string) (*db.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byRef[ref]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) CreateDonation(d *db.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	d.ID = s.nextID
	d.CreatedAt = time.Now()
	cp := *d
	s.byRef[d.PaymentReference] = &cp
	return nil
}

func (s *fakeStore) SetBillCode(id uint, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.findByID(id); d != nil {
		d.BillCode = &code
	}
	return nil
}

func (s *fakeStore) CompleteDonation(id uint, receiptNumber, transactionID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.findByID(id)
	if d == nil {
		return false, errors.New("record not found")
	}
	if d.Status == db.StatusCompleted {
		return false, nil
	}
	d.Status = db.StatusCompleted
	d.CompletedAt = &at
	d.ReceiptNumber = &receiptNumber
	if transactionID != "" {
		tx := transactionID
		d.TransactionID = &tx
	}
	s.completeApplied++
	return true, nil
}

func (s *fakeStore) MarkFailed(id uint, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.findByID(id)
	if d == nil || d.Status == db.StatusCompleted {
		return false, nil
	}
	d.Status = db.StatusFailed
	d.FailureReason = &reason
	return true, nil
}

func (s *fakeStore) MarkRefunded(id uint, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.findByID(id)
	if d == nil || d.Status != db.StatusCompleted {
		return false, nil
	}
	d.Status = db.StatusRefunded
	return true, nil
}

func (s *fakeStore) StampReceiptSent(id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.findByID(id); d != nil {
		d.ReceiptSentAt = &at
	}
	return nil
}

func (s *fakeStore) ProjectByID(id uint) (*db.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) AddToRaised(projectID uint, cents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return errors.New("record not found")
	}
	p.DonationRaised += cents
	s.raisedAdds++
	return nil
}

func (s *fakeStore) AppendEvent(donationID uint, eventType, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEvents {
		return errors.New("event table unavailable")
	}
	s.events = append(s.events, fakeEvent{donationID, eventType, payload})
	return nil
}

func (s *fakeStore) findByID(id uint) *db.Donation {
	for _, d := range s.byRef {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (s *fakeStore) eventCount(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.eventType == eventType {
			n++
		}
	}
	return n
}

func (s *fakeStore) addProject(p *db.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

type fakeGateway struct {
	mu         sync.Mutex
	configured bool
	sandbox    bool

	billCode string
	billErr  error
	category string
	catErr   error
	txs      []toyyibpay.BillTransaction
	txErr    error

	createBillCalls int
	txCalls         int
}

func (g *fakeGateway) IsConfigured() bool { return g.configured }

func (g *fakeGateway) Environment() string {
	if g.sandbox {
		return "sandbox"
	}
	return "production"
}

func (g *fakeGateway) CreateBill(p toyyibpay.BillParams) (string, error) {
	g.mu.Lock()
	g.createBillCalls++
	g.mu.Unlock()
	if g.billErr != nil {
		return "", g.billErr
	}
	return g.billCode, nil
}

func (g *fakeGateway) GetBillTransactions(billCode string) ([]toyyibpay.BillTransaction, error) {
	g.mu.Lock()
	g.txCalls++
	g.mu.Unlock()
	if g.txErr != nil {
		return nil, g.txErr
	}
	return g.txs, nil
}

func (g *fakeGateway) MapPaymentStatus(code string) string {
	switch code {
	case "1":
		return db.StatusCompleted
	case "3":
		return db.StatusFailed
	default:
		return db.StatusPending
	}
}

func (g *fakeGateway) GetOrCreateCategory() (string, error) {
	if g.catErr != nil {
		return "", g.catErr
	}
	if g.category == "" {
		return "cat-general", nil
	}
	return g.category, nil
}

func (g *fakeGateway) PaymentURL(billCode string) string {
	return "https://dev.toyyibpay.com/" + billCode
}

func (g *fakeGateway) transactionCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.txCalls
}

type fakeMailer struct {
	mu    sync.Mutex
	fail  bool
	sends []email.ReceiptData
}

func (m *fakeMailer) SendReceipt(data email.ReceiptData) email.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, data)
	if m.fail {
		return email.Result{Err: "smtp connection refused"}
	}
	return email.Result{Success: true}
}

func (m *fakeMailer) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

func gormModel(id uint) gorm.Model {
	return gorm.Model{ID: id}
}

func newTestService(store *fakeStore, gw *fakeGateway, mailer *fakeMailer) *Service {
	return &Service{
		Store:   store,
		Gateway: gw,
		Mailer:  mailer,
		SiteURL: "https://example.org",
		Bank: BankDetails{
			BankName:      "Maybank",
			AccountNumber: "512345678901",
			AccountName:   "Pertubuhan Insan Prihatin",
		},
	}
}
