package donation

import (
	"errors"
	"strings"
	"testing"

	"insanprihatin/web/db"
)

func validInput(amount float64) CreateInput {
	return CreateInput{
		Name:   "Aminah Binti Ali",
		Email:  "aminah@example.com",
		Amount: amount,
	}
}

func TestCreateAmountBoundaries(t *testing.T) {
	cases := []struct {
		amount float64
		ok     bool
	}{
		{0, false},
		{-5, false},
		{0.999, false},
		{1, true},
		{100000, true},
		{100000.01, false},
		{100001, false},
	}

	for _, tc := range cases {
		store := newFakeStore()
		svc := newTestService(store, &fakeGateway{}, &fakeMailer{})

		_, err := svc.Create(validInput(tc.amount))
		if tc.ok && err != nil {
			t.Errorf("amount %v: expected success, got %v", tc.amount, err)
		}
		if !tc.ok {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("amount %v: expected validation error, got %v", tc.amount, err)
			}
		}
	}
}

func TestCreateRequiresDonorInfo(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGateway{}, &fakeMailer{})

	in := validInput(50)
	in.Email = ""
	if _, err := svc.Create(in); err == nil {
		t.Error("expected error for missing email on non-anonymous donation")
	}

	in = validInput(50)
	in.Name = "  "
	if _, err := svc.Create(in); err == nil {
		t.Error("expected error for missing name on non-anonymous donation")
	}

	// anonymous donations need no donor info
	anon := CreateInput{Amount: 50, Anonymous: true}
	if _, err := svc.Create(anon); err != nil {
		t.Errorf("anonymous donation without donor info should pass, got %v", err)
	}
}

func TestCreateValidatesEmailAndPhone(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGateway{}, &fakeMailer{})

	in := validInput(50)
	in.Email = "not-an-email"
	if _, err := svc.Create(in); err == nil {
		t.Error("expected error for malformed email")
	}

	in = validInput(50)
	in.Phone = "123"
	if _, err := svc.Create(in); err == nil {
		t.Error("expected error for too-short phone")
	}

	in = validInput(50)
	in.Phone = "+60 12-345 6789"
	if _, err := svc.Create(in); err != nil {
		t.Errorf("valid phone rejected: %v", err)
	}
}

func TestCreateProjectChecks(t *testing.T) {
	store := newFakeStore()
	store.addProject(&db.Project{Model: gormModel(7), Title: "Rumah Anak Yatim", DonationEnabled: false})
	svc := newTestService(store, &fakeGateway{}, &fakeMailer{})

	missing := uint(99)
	in := validInput(50)
	in.ProjectID = &missing
	if _, err := svc.Create(in); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}

	disabled := uint(7)
	in = validInput(50)
	in.ProjectID = &disabled
	var verr *ValidationError
	if _, err := svc.Create(in); !errors.As(err, &verr) {
		t.Errorf("expected validation error for donation-disabled project, got %v", err)
	}
}

func TestCreateManualFallback(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{configured: false}
	svc := newTestService(store, gw, &fakeMailer{})

	result, err := svc.Create(validInput(25))
	if err != nil {
		t.Fatal(err)
	}

	if result.PaymentMethod != "manual" {
		t.Errorf("expected manual payment method, got %q", result.PaymentMethod)
	}
	if result.BankDetails == nil {
		t.Fatal("expected bank details")
	}
	if result.BankDetails.Reference != result.Donation.PaymentReference {
		t.Errorf("bank reference %q does not match payment reference %q",
			result.BankDetails.Reference, result.Donation.PaymentReference)
	}
	if result.Donation.BillCode != nil {
		t.Error("manual donation should have no bill code")
	}
	if result.RedirectURL != "" {
		t.Error("manual donation should have no redirect URL")
	}
	if gw.createBillCalls != 0 {
		t.Errorf("expected zero gateway calls, got %d", gw.createBillCalls)
	}
	if store.eventCount(EventManualPayment) != 1 {
		t.Error("expected a manual_payment event")
	}
	if result.Donation.AmountCents != 2500 {
		t.Errorf("expected 2500 cents, got %d", result.Donation.AmountCents)
	}
}

func TestCreateHappyPath(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{configured: true, sandbox: true, billCode: "abc123"}
	svc := newTestService(store, gw, &fakeMailer{})

	result, err := svc.Create(validInput(50))
	if err != nil {
		t.Fatal(err)
	}

	d := result.Donation
	if d.Status != db.StatusPending {
		t.Errorf("expected pending, got %q", d.Status)
	}
	if result.PaymentMethod != "toyyibpay" {
		t.Errorf("expected toyyibpay method, got %q", result.PaymentMethod)
	}
	if result.RedirectURL == "" || !strings.Contains(result.RedirectURL, "abc123") {
		t.Errorf("redirect URL should point at the bill, got %q", result.RedirectURL)
	}
	if d.BillCode == nil || *d.BillCode != "abc123" {
		t.Error("bill code not persisted on the donation")
	}
	if d.AmountCents != 5000 {
		t.Errorf("expected 5000 cents, got %d", d.AmountCents)
	}
	if d.Environment != "sandbox" {
		t.Errorf("expected sandbox environment tag, got %q", d.Environment)
	}
	if !strings.HasPrefix(d.PaymentReference, "DON-") {
		t.Errorf("unexpected reference format: %q", d.PaymentReference)
	}
	if store.eventCount(EventCreated) != 1 || store.eventCount(EventBillCreated) != 1 {
		t.Error("expected created and bill_created events")
	}
}

func TestCreateBillFailureKeepsPendingRow(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{configured: true, billErr: errors.New("category quota exceeded")}
	svc := newTestService(store, gw, &fakeMailer{})

	_, err := svc.Create(validInput(50))
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}

	// the pending row survives for later reconciliation
	if len(store.byRef) != 1 {
		t.Fatalf("expected the donation row to be kept, have %d rows", len(store.byRef))
	}
	for _, d := range store.byRef {
		if d.Status != db.StatusPending {
			t.Errorf("expected pending, got %q", d.Status)
		}
	}
	if store.eventCount(EventGatewayError) != 1 {
		t.Error("expected an error event with the gateway failure")
	}
}

func TestNewReferenceUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := NewReference()
		if seen[ref] {
			t.Fatalf("duplicate reference generated: %s", ref)
		}
		seen[ref] = true
	}
}
