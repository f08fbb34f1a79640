package models

import "time"

type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Name         string    `bson:"name" json:"name"`
	Bio          string    `bson:"bio" json:"bio"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// Author is the public part of a User shown next to posts.
type Author struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
	Bio  string `bson:"bio" json:"bio"`
}

func (u User) Author() Author {
	return Author{ID: u.ID, Name: u.Name, Bio: u.Bio}
}
