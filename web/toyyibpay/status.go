package toyyibpay

import "insanprihatin/web/db"

// MapPaymentStatus converts a gateway billpaymentStatus code to the internal
// donation status. 1 = successful, 2 = pending, 3 = unsuccessful,
// 4 = pending (channel-specific intermediate state). Unknown codes map to
// pending so a transient gateway state never fails a donation.
func (c *Client) MapPaymentStatus(code string) string {
	switch code {
	case "1":
		return db.StatusCompleted
	case "3":
		return db.StatusFailed
	case "2", "4":
		return db.StatusPending
	default:
		return db.StatusPending
	}
}
