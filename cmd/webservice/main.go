package main

import (
	"os"
	"time"

	"insanprihatin/utils"
	"insanprihatin/web/controllers"
	"insanprihatin/web/db"
	"insanprihatin/web/donation"
	"insanprihatin/web/email"
	"insanprihatin/web/middleware"
	"insanprihatin/web/toyyibpay"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func init() {
	utils.LoadEnv()
	db.Connect()
	db.Sync()
}

func main() {
	gateway := toyyibpay.New(toyyibpay.Config{
		SecretKey:    os.Getenv("TOYYIBPAY_SECRET_KEY"),
		CategoryCode: os.Getenv("TOYYIBPAY_CATEGORY_CODE"),
		Sandbox:      os.Getenv("TOYYIBPAY_SANDBOX") == "true",
	})

	controllers.Init(&donation.Service{
		Store:   db.NewStore(db.DB),
		Gateway: gateway,
		Mailer:  email.SMTPMailer{},
		SiteURL: utils.Getenv("SITE_URL", "http://localhost:8080"),
		Bank: donation.BankDetails{
			BankName:      os.Getenv("BANK_NAME"),
			AccountNumber: os.Getenv("BANK_ACCOUNT_NUMBER"),
			AccountName:   os.Getenv("BANK_ACCOUNT_NAME"),
		},
	})

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))

	globalLimiter := middleware.NewRateLimiter(15, 15) // 15 requests/min/IP
	globalLimiter.StartCleanup(10 * time.Minute)

	r.POST("/api/donations", globalLimiter.Middleware(), controllers.CreateDonation)
	r.GET("/api/donations/verify", globalLimiter.Middleware(), controllers.VerifyDonation)
	r.GET("/api/donations/qr", globalLimiter.Middleware(), controllers.DonationQR)
	r.GET("/api/projects/:id/progress", globalLimiter.Middleware(), controllers.ProjectProgress)

	// gateway-invoked, not rate limited
	r.POST("/api/donations/callback", controllers.Callback)

	r.POST("/admin/login", globalLimiter.Middleware(), controllers.AdminLogin)
	r.PATCH("/api/donations/status", middleware.AdminAuth, controllers.UpdateDonationStatus)

	r.GET("/health", controllers.Health)

	r.Run()
}
