package models

import "time"

type Post struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"userId" json:"userId"`
	Title     string    `bson:"title" json:"title"`
	Text      string    `bson:"text" json:"text"`
	HTML      string    `bson:"html" json:"html"`
	Tags      []string  `bson:"tags" json:"tags"`
	Public    bool      `bson:"public" json:"public"`
	Views     int64     `bson:"views" json:"views"`
	Favorites int64     `bson:"favorites" json:"favorites"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PostWithAuthor is a post joined with its owner's public profile.
// User is nil when the owner row is gone.
type PostWithAuthor struct {
	Post `bson:",inline"`
	User *Author `bson:"user,omitempty"`
}
