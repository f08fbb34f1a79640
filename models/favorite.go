package models

import "time"

// Favorite marks a post a user has favorited. One per user and post.
type Favorite struct {
	UserID    string    `bson:"userId" json:"userId"`
	PostID    string    `bson:"postId" json:"postId"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
