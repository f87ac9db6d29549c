package donation

// Event types recorded against a donation. Each type has its own payload
// struct, so the fields an event can carry are fixed at compile time.
const (
	EventCreated                 = "created"
	EventBillCreated             = "bill_created"
	EventManualPayment           = "manual_payment"
	EventStatusUpdated           = "status_updated"
	EventAutoRecoveryCompleted   = "auto_recovery_completed"
	EventReceiptEmailSent        = "receipt_email_sent"
	EventReceiptEmailFailed      = "receipt_email_failed"
	EventVerificationDiscrepancy = "verification_discrepancy"
	EventGatewayError            = "error"
)

type CreatedPayload struct {
	Amount      int64  `json:"amount"` // minor units
	Currency    string `json:"currency"`
	ProjectID   *uint  `json:"project_id,omitempty"`
	Anonymous   bool   `json:"anonymous"`
	Environment string `json:"environment"`
}

type BillCreatedPayload struct {
	BillCode     string `json:"bill_code"`
	CategoryCode string `json:"category_code"`
	PaymentURL   string `json:"payment_url"`
}

type ManualPaymentPayload struct {
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

type StatusUpdatedPayload struct {
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	ReceiptNumber  string `json:"receipt_number,omitempty"`
	TransactionID  string `json:"transaction_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
	UpdatedBy      string `json:"updated_by,omitempty"`
}

type AutoRecoveryPayload struct {
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	GatewayStatus  string `json:"gateway_status"`
	TransactionID  string `json:"transaction_id"`
	ReceiptNumber  string `json:"receipt_number"`
	Reason         string `json:"reason"`
}

type ReceiptEmailPayload struct {
	Recipient string `json:"recipient"`
	Error     string `json:"error,omitempty"`
}

type DiscrepancyPayload struct {
	LocalStatus   string `json:"local_status"`
	GatewayStatus string `json:"gateway_status"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type GatewayErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage"`
}
