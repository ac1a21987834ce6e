package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func (api *API) POSTFollowHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	user, err := api.currentUser(r)
	if err != nil {
		api.metrics.BadRequests.WithLabelValues("post_follow").Inc()
		http.Error(w, "Invalid or missing token", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)

	followsUserID, _ := api.getUserID(db, vars["username"])
	if followsUserID == 0 {
		logger.WithField("username", vars["username"]).Warn(USER_NOT_FOUND)
		api.metrics.BadRequests.WithLabelValues("post_follow").Inc()
		http.Error(w, "The user you are trying to follow cannot be found", http.StatusNotFound)
		return
	}

	if followsUserID == user.UserID {
		logger.WithField("username", user.Username).Warn("Attempt to self-follow")
		api.metrics.BadRequests.WithLabelValues("post_follow").Inc()
		http.Error(w, "You cannot follow yourself", http.StatusBadRequest)
		return
	}

	// Insert follow relationship
	follow := Follow{FollowerID: user.UserID, FollowingID: followsUserID}

	if err := db.Create(&follow).Error; err != nil {
		if isConstraintViolation(err) {
			api.metrics.BadRequests.WithLabelValues("post_follow").Inc()
			http.Error(w, "You already follow this user", http.StatusConflict)
			return
		}
		logger.WithError(err).Error("Failed to insert follow relationship")
		api.metrics.BadRequests.WithLabelValues("post_follow").Inc()
		http.Error(w, "Failed to follow user", http.StatusBadRequest)
		return
	}

	logger.WithFields(logrus.Fields{
		"user":   user.Username,
		"target": vars["username"],
	}).Info("User followed successfully")

	api.metrics.FollowRequests.WithLabelValues("follow").Inc()
	api.metrics.SuccessfulRequests.WithLabelValues("post_follow").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) DELETEFollowHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	user, err := api.currentUser(r)
	if err != nil {
		api.metrics.BadRequests.WithLabelValues("delete_follow").Inc()
		http.Error(w, "Invalid or missing token", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)

	unfollowsUserID, _ := api.getUserID(db, vars["username"])
	if unfollowsUserID == 0 {
		api.metrics.BadRequests.WithLabelValues("delete_follow").Inc()
		http.Error(w, "The user you are trying to unfollow cannot be found", http.StatusNotFound)
		return
	}

	// Delete follow relationship
	result := db.Where("follower_id = ? AND following_id = ?", user.UserID, unfollowsUserID).Delete(&Follow{})
	if result.Error != nil {
		api.metrics.BadRequests.WithLabelValues("delete_follow").Inc()
		http.Error(w, "Failed to unfollow user", http.StatusBadRequest)
		return
	}
	if result.RowsAffected == 0 {
		api.metrics.BadRequests.WithLabelValues("delete_follow").Inc()
		http.Error(w, "You do not follow this user", http.StatusNotFound)
		return
	}

	logger.WithFields(logrus.Fields{
		"user":   user.Username,
		"target": vars["username"],
	}).Info("User unfollowed successfully")

	api.metrics.UnfollowRequests.WithLabelValues("unfollow").Inc()
	api.metrics.SuccessfulRequests.WithLabelValues("delete_follow").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) GETFollowersHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	logger.WithFields(logrus.Fields{
		"method":    r.Method,
		"path":      r.URL.Path,
		"query":     r.URL.RawQuery,
		"remote_ip": r.RemoteAddr,
	}).Info("GETFollowersHandler called")

	vars := mux.Vars(r)

	userID, _ := api.getUserID(db, vars["username"])
	if userID == 0 {
		logger.WithField("username", vars["username"]).Warn(USER_NOT_FOUND)
		api.metrics.BadRequests.WithLabelValues("get_followers").Inc()
		http.Error(w, "Cannot find user", http.StatusNotFound)
		return
	}

	// Query all followers
	var followers []string

	err := db.
		Table("users").
		Select("users.username").
		Joins("INNER JOIN follows ON follows.follower_id = users.user_id").
		Where("follows.following_id = ?", userID).
		Limit(PER_PAGE).
		Pluck("username", &followers).
		Error

	if err != nil {
		logger.WithFields(logrus.Fields{"error": err.Error(), "userID": userID}).Error("Failed to fetch followers")
		http.Error(w, "Query execution failed", http.StatusInternalServerError)
		return
	}

	logger.WithField("follower_count", len(followers)).Info("Followers retrieved successfully")
	api.metrics.SuccessfulRequests.WithLabelValues("get_followers").Inc()
	response := map[string][]string{"followers": followers}
	err = json.NewEncoder(w).Encode(response)
	if err != nil {
		fmt.Print(err.Error())
	}
}

func (api *API) GETFollowingListHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	vars := mux.Vars(r)

	userID, _ := api.getUserID(db, vars["username"])
	if userID == 0 {
		logger.WithField("username", vars["username"]).Warn(USER_NOT_FOUND)
		api.metrics.BadRequests.WithLabelValues("get_following").Inc()
		http.Error(w, "Cannot find user", http.StatusNotFound)
		return
	}

	var following []string

	err := db.
		Table("users").
		Select("users.username").
		Joins("INNER JOIN follows ON follows.following_id = users.user_id").
		Where("follows.follower_id = ?", userID).
		Limit(PER_PAGE).
		Pluck("username", &following).
		Error

	if err != nil {
		logger.WithFields(logrus.Fields{"error": err.Error(), "userID": userID}).Error("Failed to fetch following")
		http.Error(w, "Query execution failed", http.StatusInternalServerError)
		return
	}

	logger.WithField("following_count", len(following)).Info("Following retrieved successfully")
	api.metrics.SuccessfulRequests.WithLabelValues("get_following").Inc()
	response := map[string][]string{"following": following}
	err = json.NewEncoder(w).Encode(response)
	if err != nil {
		fmt.Print(err.Error())
	}
}

func (api *API) GETIsFollowingHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	followerUsername := r.URL.Query().Get("follower")
	followingUsername := r.URL.Query().Get("following")
	followerID, _ := api.getUserID(db, followerUsername)
	followingID, _ := api.getUserID(db, followingUsername)

	logger.WithFields(logrus.Fields{
		"method":    r.Method,
		"path":      r.URL.Path,
		"follower":  followerUsername,
		"following": followingUsername,
		"remote_ip": r.RemoteAddr,
	}).Info("GETIsFollowingHandler called")

	var isFollowing bool = true
	var follow Follow
	err := db.Model(&Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		First(&follow).Error

	if err != nil {
		isFollowing = false // Default to false if no rows found or any error occurs
	}

	logger.WithField("is_following", isFollowing).Info("Following status retrieved successfully")
	api.metrics.SuccessfulRequests.WithLabelValues("is_following").Inc()
	err = json.NewEncoder(w).Encode(isFollowing)
	if err != nil {
		fmt.Print(err.Error())
	}
}
