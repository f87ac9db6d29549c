package email

import (
	"fmt"
	"time"
)

type ReceiptData struct {
	DonorName     string
	DonorEmail    string
	Amount        float64 // major units
	Currency      string
	Reference     string
	ReceiptNumber string
	ProjectTitle  string
	CompletedAt   time.Time
}

// Result reports receipt delivery without raising an error; completion of a
// donation never depends on the email going out.
type Result struct {
	Success bool
	Err     string
}

// SMTPMailer sends receipts through the SMTP settings in the environment.
type SMTPMailer struct{}

func (SMTPMailer) SendReceipt(data ReceiptData) Result {
	subject := fmt.Sprintf("Donation receipt %s", data.ReceiptNumber)
	if err := SendEmail(data.DonorEmail, subject, BuildReceiptBody(data)); err != nil {
		return Result{Err: err.Error()}
	}
	return Result{Success: true}
}

func BuildReceiptBody(d ReceiptData) string {
	name := d.DonorName
	if name == "" {
		name = "Donor"
	}

	target := "General Fund"
	if d.ProjectTitle != "" {
		target = d.ProjectTitle
	}

	return fmt.Sprintf("Dear %s,\n\n"+
		"Thank you for your donation.\n\n"+
		"Receipt number: %s\n"+
		"Payment reference: %s\n"+
		"Amount: %s %.2f\n"+
		"Donated to: %s\n"+
		"Date: %s\n\n"+
		"This receipt confirms that your payment has been received in full.\n",
		name, d.ReceiptNumber, d.Reference, d.Currency, d.Amount, target,
		d.CompletedAt.Format("2 January 2006 15:04"))
}
