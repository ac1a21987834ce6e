package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func pathID(r *http.Request) uint {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 0 {
		return 0
	}
	return uint(id)
}

func (api *API) POSTPostHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	user, err := api.currentUser(r)
	if err != nil {
		api.metrics.BadRequests.WithLabelValues("post_post").Inc()
		http.Error(w, "Invalid or missing token", http.StatusUnauthorized)
		return
	}

	logger.WithFields(logrus.Fields{
		"method":    r.Method,
		"path":      r.URL.Path,
		"username":  user.Username,
		"remote_ip": r.RemoteAddr,
	}).Info("POSTPostHandler called")

	var data struct {
		Image   string `json:"image"`
		Caption string `json:"caption"`
	}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || strings.TrimSpace(data.Image) == "" {
		logger.Warn("Invalid or missing image in request")
		api.metrics.BadRequests.WithLabelValues("post_post").Inc()
		http.Error(w, `{"status":400, "error_msg":"You have to provide an image"}`, http.StatusBadRequest)
		return
	}

	post := Post{
		UserID:  user.UserID,
		Image:   data.Image,
		Caption: data.Caption,
	}

	if err := db.Create(&post).Error; err != nil {
		logger.WithError(err).Error("Failed to insert post into database")
		api.metrics.BadRequests.WithLabelValues("post_post").Inc()
		http.Error(w, "Failed to create post", http.StatusBadRequest)
		return
	}

	logger.WithField("username", user.Username).Info("Post created successfully")
	api.metrics.PostsCreated.WithLabelValues("post_post").Inc()
	api.metrics.SuccessfulRequests.WithLabelValues("post_post").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	err = json.NewEncoder(w).Encode(post)
	if err != nil {
		fmt.Print(err.Error())
	}
}

func (api *API) GETAllPostsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	logger.WithFields(logrus.Fields{
		"method":    r.Method,
		"path":      r.URL.Path,
		"query":     r.URL.RawQuery,
		"remote_ip": r.RemoteAddr,
	}).Info("GETAllPostsHandler called")

	var posts []APIPost
	err := db.Table("posts").
		Select("posts.post_id AS post_id, posts.image AS image, posts.caption AS caption, posts.created_at AS created_at, users.username AS user").
		Joins("JOIN users ON posts.user_id = users.user_id").
		Order("posts.post_id DESC").
		Limit(PER_PAGE).
		Find(&posts).Error

	if err != nil {
		logger.WithError(err).Error("Failed to fetch posts")
		http.Error(w, "Query execution failed", http.StatusInternalServerError)
		return
	}

	logger.WithField("post_count", len(posts)).Info("Posts retrieved successfully")
	api.metrics.SuccessfulRequests.WithLabelValues("get_posts").Inc()

	w.Header().Set("Content-Type", "application/json")
	if len(posts) == 0 {
		_, err = w.Write([]byte("[]"))
		if err != nil {
			fmt.Print(err.Error())
		}
		return
	}

	err = json.NewEncoder(w).Encode(posts)
	if err != nil {
		fmt.Print(err.Error())
	}
}

func (api *API) GETPostHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	var post Post
	result := db.Where("post_id = ?", pathID(r)).First(&post)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			api.metrics.BadRequests.WithLabelValues("get_post").Inc()
			http.Error(w, "Post not found", http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}

	api.metrics.SuccessfulRequests.WithLabelValues("get_post").Inc()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(post); err != nil {
		fmt.Print(err.Error())
	}
}

func (api *API) DELETEPostHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	user, err := api.currentUser(r)
	if err != nil {
		api.metrics.BadRequests.WithLabelValues("delete_post").Inc()
		http.Error(w, "Invalid or missing token", http.StatusUnauthorized)
		return
	}

	var post Post
	result := db.Where("post_id = ?", pathID(r)).First(&post)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			api.metrics.BadRequests.WithLabelValues("delete_post").Inc()
			http.Error(w, "Post not found", http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}

	if post.UserID != user.UserID {
		logger.WithFields(logrus.Fields{
			"username": user.Username,
			"post_id":  post.PostID,
		}).Warn("Attempt to delete another user's post")
		api.metrics.BadRequests.WithLabelValues("delete_post").Inc()
		http.Error(w, "You can only delete your own posts", http.StatusForbidden)
		return
	}

	// Comments and likes go with the post through the FK cascade
	if err := db.Delete(&post).Error; err != nil {
		logger.WithError(err).Error("Failed to delete post")
		http.Error(w, "Failed to delete post", http.StatusInternalServerError)
		return
	}

	logger.WithField("post_id", post.PostID).Info("Post deleted successfully")
	api.metrics.SuccessfulRequests.WithLabelValues("delete_post").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) POSTCommentHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	user, err := api.currentUser(r)
	if err != nil {
		api.metrics.BadRequests.WithLabelValues("post_comment").Inc()
		http.Error(w, "Invalid or missing token", http.StatusUnauthorized)
		return
	}

	var post Post
	if err := db.Where("post_id = ?", pathID(r)).First(&post).Error; err != nil {
		api.metrics.BadRequests.WithLabelValues("post_comment").Inc()
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	var data struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || strings.TrimSpace(data.Text) == "" {
		logger.Warn("Invalid or missing text in request")
		api.metrics.BadRequests.WithLabelValues("post_comment").Inc()
		http.Error(w, `{"status":400, "error_msg":"Invalid or missing text"}`, http.StatusBadRequest)
		return
	}

	comment := Comment{
		PostID: post.PostID,
		UserID: user.UserID,
		Text:   data.Text,
	}

	if err := db.Create(&comment).Error; err != nil {
		logger.WithError(err).Error("Failed to insert comment into database")
		http.Error(w, "Failed to create comment", http.StatusBadRequest)
		return
	}

	logger.WithFields(logrus.Fields{
		"username": user.Username,
		"post_id":  post.PostID,
	}).Info("Comment created successfully")
	api.metrics.SuccessfulRequests.WithLabelValues("post_comment").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	err = json.NewEncoder(w).Encode(comment)
	if err != nil {
		fmt.Print(err.Error())
	}
}

func (api *API) GETCommentsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	var comments []APIComment
	err := db.Table("comments").
		Select("comments.comment_id AS comment_id, comments.text AS text, comments.created_at AS created_at, users.username AS user").
		Joins("JOIN users ON comments.user_id = users.user_id").
		Where("comments.post_id = ?", pathID(r)).
		Order("comments.comment_id ASC").
		Find(&comments).Error

	if err != nil {
		logger.WithError(err).Error("Failed to fetch comments")
		http.Error(w, "Query execution failed", http.StatusInternalServerError)
		return
	}

	api.metrics.SuccessfulRequests.WithLabelValues("get_comments").Inc()
	w.Header().Set("Content-Type", "application/json")
	if len(comments) == 0 {
		_, err = w.Write([]byte("[]"))
		if err != nil {
			fmt.Print(err.Error())
		}
		return
	}

	err = json.NewEncoder(w).Encode(comments)
	if err != nil {
		fmt.Print(err.Error())
	}
}

func (api *API) POSTLikeHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	user, err := api.currentUser(r)
	if err != nil {
		api.metrics.BadRequests.WithLabelValues("post_like").Inc()
		http.Error(w, "Invalid or missing token", http.StatusUnauthorized)
		return
	}

	var post Post
	if err := db.Where("post_id = ?", pathID(r)).First(&post).Error; err != nil {
		api.metrics.BadRequests.WithLabelValues("post_like").Inc()
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	like := Like{PostID: post.PostID, UserID: user.UserID}

	if err := db.Create(&like).Error; err != nil {
		if isConstraintViolation(err) {
			api.metrics.BadRequests.WithLabelValues("post_like").Inc()
			http.Error(w, "You already liked this post", http.StatusConflict)
			return
		}
		logger.WithError(err).Error("Failed to insert like")
		http.Error(w, "Failed to like post", http.StatusBadRequest)
		return
	}

	logger.WithFields(logrus.Fields{
		"username": user.Username,
		"post_id":  post.PostID,
	}).Info("Post liked successfully")
	api.metrics.LikesCreated.WithLabelValues("post_like").Inc()
	api.metrics.SuccessfulRequests.WithLabelValues("post_like").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) DELETELikeHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer afterRequestLogging(start, r)

	user, err := api.currentUser(r)
	if err != nil {
		api.metrics.BadRequests.WithLabelValues("delete_like").Inc()
		http.Error(w, "Invalid or missing token", http.StatusUnauthorized)
		return
	}

	result := db.Where("post_id = ? AND user_id = ?", pathID(r), user.UserID).Delete(&Like{})
	if result.Error != nil {
		logger.WithError(result.Error).Error("Failed to delete like")
		http.Error(w, "Failed to unlike post", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		api.metrics.BadRequests.WithLabelValues("delete_like").Inc()
		http.Error(w, "Like not found", http.StatusNotFound)
		return
	}

	api.metrics.SuccessfulRequests.WithLabelValues("delete_like").Inc()
	w.WriteHeader(http.StatusNoContent)
}
