package db

import (
	"fmt"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	var err error

	dsn := os.Getenv("DB")

	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	fmt.Println("Connected to database")
}

func Sync() {
	err := DB.AutoMigrate(&Donation{}, &Project{}, &DonationEvent{})
	if err != nil {
		panic(err)
	}
}
