package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const adminSessionName = "admin-session"

// adminUser returns the staff user behind the session cookie, nil otherwise.
func (api *API) adminUser(r *http.Request) *User {
	session, err := store.Get(r, adminSessionName)
	if err != nil {
		return nil
	}

	userID, ok := session.Values["user_id"].(uint)
	if !ok {
		return nil
	}

	var user User
	if err := db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		return nil
	}
	if !user.IsStaff {
		return nil
	}
	return &user
}

func (api *API) POSTAdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	var req LoginRequest

	logger.WithFields(logrus.Fields{
		"method":    r.Method,
		"path":      r.URL.Path,
		"remote_ip": r.RemoteAddr,
	}).Info("POSTAdminLoginHandler called")

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WithError(err).Warn("Invalid request body received")
		api.metrics.BadRequests.WithLabelValues("admin_login").Inc()
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var foundUser User
	result := db.Where("username = ?", req.Username).First(&foundUser)
	if result.Error == gorm.ErrRecordNotFound {
		logger.WithField("username", req.Username).Warn("Invalid admin login credentials")
		api.metrics.BadRequests.WithLabelValues("admin_login").Inc()
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	} else if result.Error != nil {
		logger.WithError(result.Error).Error("Database error during admin login")
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if !CheckPasswordHash(req.Password, foundUser.PWHash) || !foundUser.IsStaff {
		logger.WithField("username", req.Username).Warn("Admin access denied")
		api.metrics.BadRequests.WithLabelValues("admin_login").Inc()
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	session, _ := store.Get(r, adminSessionName)
	session.Values["user_id"] = foundUser.UserID
	if err := session.Save(r, w); err != nil {
		logger.WithError(err).Error("Failed to save admin session")
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	logger.WithField("username", req.Username).Info("Admin logged in successfully")
	api.metrics.SuccessfulRequests.WithLabelValues("admin_login").Inc()
	w.WriteHeader(http.StatusOK)
}

func (api *API) GETAdminUsersHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	if api.adminUser(r) == nil {
		api.metrics.BadRequests.WithLabelValues("admin_users").Inc()
		http.Error(w, "Staff credentials required", http.StatusForbidden)
		return
	}

	var users []UserDetails
	err := db.Table("users").
		Select("users.user_id, users.username, users.email, users.profile_picture, users.bio, users.website").
		Order("users.user_id ASC").
		Find(&users).Error

	if err != nil {
		logger.WithError(err).Error("Failed to fetch users")
		http.Error(w, "Query execution failed", http.StatusInternalServerError)
		return
	}

	logger.WithField("user_count", len(users)).Info("Users retrieved successfully")
	api.metrics.SuccessfulRequests.WithLabelValues("admin_users").Inc()
	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(users)
	if err != nil {
		fmt.Print(err.Error())
	}
}

// DELETEAdminUserHandler removes a user; the FK cascade takes the profile,
// posts, stories, comments, likes, follows and tokens with it.
func (api *API) DELETEAdminUserHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	if api.adminUser(r) == nil {
		api.metrics.BadRequests.WithLabelValues("admin_delete_user").Inc()
		http.Error(w, "Staff credentials required", http.StatusForbidden)
		return
	}

	var user User
	result := db.Where("user_id = ?", pathID(r)).First(&user)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			api.metrics.BadRequests.WithLabelValues("admin_delete_user").Inc()
			http.Error(w, USER_NOT_FOUND, http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}

	if err := db.Delete(&user).Error; err != nil {
		logger.WithError(err).Error("Failed to delete user")
		http.Error(w, "Failed to delete user", http.StatusInternalServerError)
		return
	}

	logger.WithField("username", user.Username).Info("User deleted successfully")
	api.metrics.SuccessfulRequests.WithLabelValues("admin_delete_user").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// POSTAdminDeactivateStoryHandler clears the active flag. This is the only
// operation that mutates it; there is no scheduled expiry.
func (api *API) POSTAdminDeactivateStoryHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	if api.adminUser(r) == nil {
		api.metrics.BadRequests.WithLabelValues("admin_deactivate_story").Inc()
		http.Error(w, "Staff credentials required", http.StatusForbidden)
		return
	}

	var story Story
	result := db.Where("story_id = ?", pathID(r)).First(&story)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			api.metrics.BadRequests.WithLabelValues("admin_deactivate_story").Inc()
			http.Error(w, "Story not found", http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}

	if err := db.Model(&story).Update("is_active", false).Error; err != nil {
		logger.WithError(err).Error("Failed to deactivate story")
		http.Error(w, "Failed to deactivate story", http.StatusInternalServerError)
		return
	}

	logger.WithField("story_id", story.StoryID).Info("Story deactivated successfully")
	api.metrics.SuccessfulRequests.WithLabelValues("admin_deactivate_story").Inc()
	w.WriteHeader(http.StatusNoContent)
}
