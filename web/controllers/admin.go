package controllers

import (
	"errors"
	"net/http"
	"os"
	"time"

	"insanprihatin/web/donation"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func AdminLogin(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	passwordHash := os.Getenv("ADMIN_PASSWORD_HASH")
	if adminEmail == "" || passwordHash == "" || body.Email != adminEmail {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(body.Password)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email or password"})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  body.Email,
		"role": "admin",
		"exp":  time.Now().Add(time.Hour * 24 * 30).Unix(),
	})

	tokenString, err := token.SignedString([]byte(os.Getenv("SECRET")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tokenString})
}

// UpdateDonationStatus lets an admin correct a donation's status without
// consulting the gateway. Completion goes through the same idempotent
// transition as the webhook and auto-recovery paths.
func UpdateDonationStatus(c *gin.Context) {
	var req struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Reason    string `json:"reason"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference is required"})
		return
	}

	updatedBy, _ := c.Get("admin")
	admin, _ := updatedBy.(string)

	d, err := Donations.UpdateStatus(req.Reference, req.Status, req.Reason, admin)
	if err != nil {
		var verr *donation.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
		case errors.Is(err, donation.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Donation not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update donation"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"donation": donationView(d),
	})
}
