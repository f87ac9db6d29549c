package controllers

import (
	"errors"
	"net/http"

	"insanprihatin/web/donation"

	"github.com/gin-gonic/gin"
)

// Callback receives toyyibpay's asynchronous payment confirmation. The
// gateway posts form fields and correlates through order_id, which carries
// our payment reference.
func Callback(c *gin.Context) {
	cb := donation.CallbackInput{
		RefNo:   c.PostForm("refno"),
		Status:  c.PostForm("status"),
		Reason:  c.PostForm("reason"),
		OrderID: c.PostForm("order_id"),
	}

	if cb.OrderID == "" || cb.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid callback payload"})
		return
	}

	if err := Donations.HandleCallback(cb); err != nil {
		if errors.Is(err, donation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Donation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process callback"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
