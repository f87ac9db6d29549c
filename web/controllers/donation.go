package controllers

import (
	"errors"
	"net/http"

	"insanprihatin/web/db"
	"insanprihatin/web/donation"
	"insanprihatin/web/toyyibpay"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

func CreateDonation(c *gin.Context) {
	var req struct {
		Name         string  `json:"name"`
		Email        string  `json:"email"`
		Phone        string  `json:"phone"`
		Amount       float64 `json:"amount"`
		Currency     string  `json:"currency"`
		ProjectID    *uint   `json:"projectId"`
		Message      string  `json:"message"`
		Anonymous    bool    `json:"anonymous"`
		DonationType string  `json:"donationType"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := Donations.Create(donation.CreateInput{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Amount:       req.Amount,
		Currency:     req.Currency,
		ProjectID:    req.ProjectID,
		Message:      req.Message,
		Anonymous:    req.Anonymous,
		DonationType: req.DonationType,
	})
	if err != nil {
		var verr *donation.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
		case errors.Is(err, donation.ErrProjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		case errors.Is(err, donation.ErrGatewayUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create donation"})
		}
		return
	}

	resp := gin.H{
		"success":          true,
		"donationId":       result.Donation.ID,
		"paymentReference": result.Donation.PaymentReference,
		"paymentMethod":    result.PaymentMethod,
	}
	if result.RedirectURL != "" {
		resp["redirectUrl"] = result.RedirectURL
	}
	if result.BankDetails != nil {
		resp["bankDetails"] = result.BankDetails
	}
	c.JSON(http.StatusOK, resp)
}

func VerifyDonation(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference is required"})
		return
	}

	result, err := Donations.Verify(reference)
	if err != nil {
		if errors.Is(err, donation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Donation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}

	resp := gin.H{
		"success":  true,
		"status":   result.Donation.Status,
		"verified": result.Verified,
		"donation": donationView(result.Donation),
	}
	if result.AutoRecovered {
		resp["autoRecovered"] = true
	}
	if result.Transaction != nil {
		resp["transaction"] = transactionView(result.Transaction)
	}
	c.JSON(http.StatusOK, resp)
}

// DonationQR renders the payment URL (or the transfer reference for manual
// donations) as a PNG QR code.
func DonationQR(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference is required"})
		return
	}

	d, err := Donations.Store.DonationByReference(reference)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Donation not found"})
		return
	}

	content := d.PaymentReference
	if d.BillCode != nil && Donations.Gateway.IsConfigured() {
		content = Donations.Gateway.PaymentURL(*d.BillCode)
	}

	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func ProjectProgress(c *gin.Context) {
	var project db.Project
	if err := db.DB.First(&project, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projectId":       project.ID,
		"title":           project.Title,
		"donationEnabled": project.DonationEnabled,
		"raised":          float64(project.DonationRaised) / 100,
		"target":          float64(project.TargetAmount) / 100,
	})
}

// donationView flattens a donation row for donor-facing responses, hiding
// donor identity when the donation is anonymous.
func donationView(d *db.Donation) gin.H {
	name := d.DonorName
	emailAddr := d.DonorEmail
	if d.Anonymous {
		name = "Anonymous"
		emailAddr = ""
	}

	projectTitle := ""
	if d.ProjectID != nil {
		if p, err := Donations.Store.ProjectByID(*d.ProjectID); err == nil {
			projectTitle = p.Title
		}
	}

	return gin.H{
		"id":               d.ID,
		"donorName":        name,
		"donorEmail":       emailAddr,
		"amount":           float64(d.AmountCents) / 100,
		"currency":         d.Currency,
		"paymentStatus":    d.Status,
		"paymentReference": d.PaymentReference,
		"receiptNumber":    d.ReceiptNumber,
		"projectTitle":     projectTitle,
		"message":          d.Message,
		"createdAt":        d.CreatedAt,
		"completedAt":      d.CompletedAt,
		"failureReason":    d.FailureReason,
	}
}

func transactionView(tx *toyyibpay.BillTransaction) gin.H {
	return gin.H{
		"transactionId": tx.BillPaymentInvoiceNo,
		"channel":       tx.BillPaymentChannel,
		"amount":        tx.BillPaymentAmount,
		"date":          tx.BillPaymentDate,
	}
}
