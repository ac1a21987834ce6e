package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testAPI *API

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	testAPI = &API{metrics: InitMetrics()}
	os.Exit(m.Run())
}

var testDBSeq atomic.Int64

// setupTestDB points the package-level db at a fresh in-memory database.
// Each database gets its own name so pooled connections share it without
// leaking state between tests.
func setupTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_foreign_keys=on", testDBSeq.Add(1))
	var openErr error
	db, openErr = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if openErr != nil {
		t.Fatalf("failed to open test database: %v", openErr)
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
		t.Fatalf("failed to migrate test database: %v", err)
	}
}

func createUser(t *testing.T, username string) User {
	t.Helper()
	user := User{Username: username, Email: username + "@example.com", PWHash: "hash"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}

func TestEmailMustBeUnique(t *testing.T) {
	setupTestDB(t)

	first := User{Username: "alice", Email: "a@x.com", PWHash: "hash"}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("failed to create first user: %v", err)
	}

	second := User{Username: "alice2", Email: "a@x.com", PWHash: "hash"}
	err := db.Create(&second).Error
	if err == nil {
		t.Fatal("expected a constraint error for duplicate email")
	}
	if !isConstraintViolation(err) {
		t.Fatalf("expected a constraint violation, got: %v", err)
	}
}

func TestUsernameMustBeUnique(t *testing.T) {
	setupTestDB(t)

	createUser(t, "alice")
	dup := User{Username: "alice", Email: "other@x.com", PWHash: "hash"}
	if err := db.Create(&dup).Error; !isConstraintViolation(err) {
		t.Fatalf("expected a constraint violation, got: %v", err)
	}
}

func TestDeletingUserCascades(t *testing.T) {
	setupTestDB(t)

	bob := createUser(t, "bob")
	carol := createUser(t, "carol")

	if err := db.Create(&Profile{UserID: bob.UserID, Bio: "hi"}).Error; err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	post := Post{UserID: bob.UserID, Image: "posts/p.jpg"}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	story := Story{UserID: bob.UserID, Content: "stories/s.mp4", IsActive: true}
	if err := db.Create(&story).Error; err != nil {
		t.Fatalf("failed to create story: %v", err)
	}

	carolPost := Post{UserID: carol.UserID, Image: "posts/c.jpg"}
	if err := db.Create(&carolPost).Error; err != nil {
		t.Fatalf("failed to create carol's post: %v", err)
	}

	// bob's activity on carol's content, and carol's on bob's
	for _, rec := range []interface{}{
		&Comment{PostID: carolPost.PostID, UserID: bob.UserID, Text: "nice"},
		&Like{PostID: carolPost.PostID, UserID: bob.UserID},
		&Comment{PostID: post.PostID, UserID: carol.UserID, Text: "thanks"},
		&Like{PostID: post.PostID, UserID: carol.UserID},
		&StoryComment{StoryID: story.StoryID, UserID: carol.UserID, Text: "wow"},
		&StoryLike{StoryID: story.StoryID, UserID: carol.UserID},
		&Follow{FollowerID: bob.UserID, FollowingID: carol.UserID},
		&Follow{FollowerID: carol.UserID, FollowingID: bob.UserID},
		&AuthToken{UserID: bob.UserID, Key: "bobtoken"},
	} {
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("failed to create record %T: %v", rec, err)
		}
	}

	if err := db.Delete(&bob).Error; err != nil {
		t.Fatalf("failed to delete bob: %v", err)
	}

	if n := countRows(t, &Profile{}); n != 0 {
		t.Errorf("expected 0 profiles after delete, got %d", n)
	}
	if n := countRows(t, &Post{}); n != 1 {
		t.Errorf("expected only carol's post to survive, got %d", n)
	}
	if n := countRows(t, &Story{}); n != 0 {
		t.Errorf("expected 0 stories after delete, got %d", n)
	}
	if n := countRows(t, &Comment{}); n != 0 {
		t.Errorf("expected 0 comments after delete, got %d", n)
	}
	if n := countRows(t, &Like{}); n != 0 {
		t.Errorf("expected 0 likes after delete, got %d", n)
	}
	if n := countRows(t, &StoryComment{}); n != 0 {
		t.Errorf("expected 0 story comments after delete, got %d", n)
	}
	if n := countRows(t, &StoryLike{}); n != 0 {
		t.Errorf("expected 0 story likes after delete, got %d", n)
	}
	if n := countRows(t, &Follow{}); n != 0 {
		t.Errorf("expected 0 follows after delete, got %d", n)
	}
	if n := countRows(t, &AuthToken{}); n != 0 {
		t.Errorf("expected 0 auth tokens after delete, got %d", n)
	}
	if n := countRows(t, &User{}); n != 1 {
		t.Errorf("expected carol to survive, got %d users", n)
	}
}

func TestDeletingPostCascadesToCommentsAndLikes(t *testing.T) {
	setupTestDB(t)

	bob := createUser(t, "bob")
	carol := createUser(t, "carol")

	post := Post{UserID: bob.UserID, Image: "posts/p.jpg"}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	if err := db.Create(&Comment{PostID: post.PostID, UserID: carol.UserID, Text: "hi"}).Error; err != nil {
		t.Fatalf("failed to create comment: %v", err)
	}
	if err := db.Create(&Like{PostID: post.PostID, UserID: carol.UserID}).Error; err != nil {
		t.Fatalf("failed to create like: %v", err)
	}

	if err := db.Delete(&post).Error; err != nil {
		t.Fatalf("failed to delete post: %v", err)
	}

	if n := countRows(t, &Comment{}); n != 0 {
		t.Errorf("expected comments to cascade, got %d", n)
	}
	if n := countRows(t, &Like{}); n != 0 {
		t.Errorf("expected likes to cascade, got %d", n)
	}
	// The commenting and liking users stay
	if n := countRows(t, &User{}); n != 2 {
		t.Errorf("expected both users to survive, got %d", n)
	}
}

func TestDeletingUserCascadesThroughPost(t *testing.T) {
	setupTestDB(t)

	bob := createUser(t, "bob")
	carol := createUser(t, "carol")

	post := Post{UserID: bob.UserID, Image: "posts/p.jpg"}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	if err := db.Create(&Comment{PostID: post.PostID, UserID: carol.UserID, Text: "hi"}).Error; err != nil {
		t.Fatalf("failed to create comment: %v", err)
	}

	// Deleting bob removes the post and, transitively, carol's comment
	if err := db.Delete(&bob).Error; err != nil {
		t.Fatalf("failed to delete bob: %v", err)
	}

	if n := countRows(t, &Post{}); n != 0 {
		t.Errorf("expected posts to cascade, got %d", n)
	}
	if n := countRows(t, &Comment{}); n != 0 {
		t.Errorf("expected comments to cascade through the post, got %d", n)
	}
	var check User
	if err := db.Where("username = ?", "carol").First(&check).Error; err != nil {
		t.Errorf("expected carol to survive: %v", err)
	}
}

func TestStoryActiveByDefault(t *testing.T) {
	setupTestDB(t)

	bob := createUser(t, "bob")
	story := Story{UserID: bob.UserID, Content: "stories/s.jpg"}
	if err := db.Create(&story).Error; err != nil {
		t.Fatalf("failed to create story: %v", err)
	}

	var saved Story
	if err := db.Where("story_id = ?", story.StoryID).First(&saved).Error; err != nil {
		t.Fatalf("failed to reload story: %v", err)
	}
	if !saved.IsActive {
		t.Error("expected a new story to be active")
	}
}

func TestDuplicateLikeRejected(t *testing.T) {
	setupTestDB(t)

	bob := createUser(t, "bob")
	carol := createUser(t, "carol")
	post := Post{UserID: bob.UserID, Image: "posts/p.jpg"}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("failed to create post: %v", err)
	}

	if err := db.Create(&Like{PostID: post.PostID, UserID: carol.UserID}).Error; err != nil {
		t.Fatalf("failed to create like: %v", err)
	}
	if err := db.Create(&Like{PostID: post.PostID, UserID: carol.UserID}).Error; !isConstraintViolation(err) {
		t.Fatalf("expected a constraint violation for a duplicate like, got: %v", err)
	}
}

func TestDuplicateStoryLikeRejected(t *testing.T) {
	setupTestDB(t)

	bob := createUser(t, "bob")
	carol := createUser(t, "carol")
	story := Story{UserID: bob.UserID, Content: "stories/s.jpg", IsActive: true}
	if err := db.Create(&story).Error; err != nil {
		t.Fatalf("failed to create story: %v", err)
	}

	if err := db.Create(&StoryLike{StoryID: story.StoryID, UserID: carol.UserID}).Error; err != nil {
		t.Fatalf("failed to create story like: %v", err)
	}
	if err := db.Create(&StoryLike{StoryID: story.StoryID, UserID: carol.UserID}).Error; !isConstraintViolation(err) {
		t.Fatalf("expected a constraint violation for a duplicate story like, got: %v", err)
	}
}

func TestDuplicateFollowRejected(t *testing.T) {
	setupTestDB(t)

	bob := createUser(t, "bob")
	carol := createUser(t, "carol")

	if err := db.Create(&Follow{FollowerID: bob.UserID, FollowingID: carol.UserID}).Error; err != nil {
		t.Fatalf("failed to create follow: %v", err)
	}
	if err := db.Create(&Follow{FollowerID: bob.UserID, FollowingID: carol.UserID}).Error; !isConstraintViolation(err) {
		t.Fatalf("expected a constraint violation for a duplicate follow, got: %v", err)
	}
	// The reverse direction is a distinct edge
	if err := db.Create(&Follow{FollowerID: carol.UserID, FollowingID: bob.UserID}).Error; err != nil {
		t.Fatalf("reverse follow should be allowed: %v", err)
	}
}

func TestCommentRequiresExistingPost(t *testing.T) {
	setupTestDB(t)

	bob := createUser(t, "bob")
	err := db.Create(&Comment{PostID: 4242, UserID: bob.UserID, Text: "ghost"}).Error
	if !isConstraintViolation(err) {
		t.Fatalf("expected a foreign key violation, got: %v", err)
	}
}

func TestForeignKeysEmittedOnChildTables(t *testing.T) {
	setupTestDB(t)

	tableSQL := func(table string) string {
		var ddl string
		if err := db.Raw(
			"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&ddl).Error; err != nil {
			t.Fatalf("failed to read schema for %s: %v", table, err)
		}
		return ddl
	}

	// Parent tables must not carry foreign keys to their children.
	if ddl := tableSQL("users"); strings.Contains(ddl, "REFERENCES") {
		t.Fatalf("users table must not reference child tables, got: %s", ddl)
	}

	for _, table := range []string{
		"profiles", "posts", "comments", "likes",
		"story_comments", "story_likes", "auth_tokens",
	} {
		if ddl := tableSQL(table); !strings.Contains(ddl, `REFERENCES "users"`) {
			t.Fatalf("%s table must reference users, got: %s", table, ddl)
		}
	}
	for _, table := range []string{"comments", "likes"} {
		if ddl := tableSQL(table); !strings.Contains(ddl, `REFERENCES "posts"`) {
			t.Fatalf("%s table must reference posts, got: %s", table, ddl)
		}
	}
	for _, table := range []string{"story_comments", "story_likes"} {
		if ddl := tableSQL(table); !strings.Contains(ddl, `REFERENCES "stories"`) {
			t.Fatalf("%s table must reference stories, got: %s", table, ddl)
		}
	}
	if ddl := tableSQL("follows"); !strings.Contains(ddl, `REFERENCES "users"`) {
		t.Fatalf("follows table must reference users, got: %s", ddl)
	}
}
