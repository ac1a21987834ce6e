package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Taken from https://gowebexamples.com/password-hashing/

func HashPassword(password string) string {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	if err != nil {
		logger.WithError(err).Error("Failed to hash password")
	}
	return string(bytes)
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func connectDB() (*gorm.DB, error) {

	var err error
	host := os.Getenv("DB_HOST")

	if host == "" {
		dbPath := os.Getenv("DATABASE")
		if dbPath == "" {
			dbPath = "./social_app.db"
		}
		logger.WithField("path", dbPath).Info("Connecting to SQLite database")
		// _foreign_keys applies per connection, which a pooled PRAGMA would not
		db, err = gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{})
	} else { // postgresql remote
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=require",
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
		)
		logger.WithField("host", os.Getenv("DB_HOST")).Info("Connecting to PostgreSQL database")
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}

	if err != nil {
		logger.WithError(err).Error("Failed to connect to the database")
		return nil, err
	}

	logger.Info("Database connection successful")
	return db, nil
}

// initDB connects and migrates every table. SQLite needs the pragma or the
// ON DELETE CASCADE clauses are ignored.
func initDB() {
	if _, err := connectDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	err := db.AutoMigrate(
		&User{},
		&Profile{},
		&Post{},
		&Comment{},
		&Like{},
		&Follow{},
		&Story{},
		&StoryComment{},
		&StoryLike{},
		&AuthToken{},
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to migrate database schema")
	}
}

// getUserID retrieves the user_id for a given username, 0 if no such user.
func (api *API) getUserID(db *gorm.DB, username string) (uint, error) {
	var user User
	result := db.Where("username = ?", username).First(&user)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, result.Error
	}
	return user.UserID, nil
}

func generateTokenKey() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		logger.WithError(err).Error("Failed to generate token key")
	}
	return hex.EncodeToString(buf)
}

// currentUser resolves the user behind an "Authorization: Token <key>" header.
func (api *API) currentUser(r *http.Request) (*User, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Token ") {
		return nil, fmt.Errorf("missing token")
	}
	key := strings.TrimPrefix(header, "Token ")

	var token AuthToken
	if err := db.Where("key = ?", key).First(&token).Error; err != nil {
		return nil, fmt.Errorf("invalid token")
	}

	var user User
	if err := db.Where("user_id = ?", token.UserID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("invalid token")
	}
	return &user, nil
}

// isConstraintViolation matches the unique/foreign key errors the drivers
// report so handlers can answer 409 instead of 500.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "violates foreign key constraint")
}

func afterRequestLogging(start time.Time, r *http.Request) {
	// Check if a request takes longer than 2 seconds

	duration := time.Since(start)

	if duration > 2*time.Second {
		logger.WithFields(logrus.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"duration":  duration,
			"remote_ip": r.RemoteAddr,
		}).Warn("Slow request detected")
	} else {
		logger.WithFields(logrus.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"duration":  duration,
			"remote_ip": r.RemoteAddr,
		}).Info("Request completed quickly")
	}
}
