package database

import (
	"fmt"
	"log"
	"os"

	"pericias-backend/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on environment")
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "db"
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable TimeZone=UTC",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Println(err)
		panic("Could not connect to database")
	}
}

// AutoMigrate creates the public-schema tables: users, practices and the
// cross-tenant WhatsApp settings (resolvable by sender id for webhooks).
func AutoMigrate() {
	DB.AutoMigrate(&models.User{}, &models.Practice{}, &models.WhatsAppSettings{})
}
