package models

import "time"

const (
	MaxTags      = 8
	MaxTagLength = 10
)

// DraftFields is the editable part of a draft, shared by autosave and publish.
type DraftFields struct {
	Title   string   `bson:"title" json:"title"`
	Text    string   `bson:"text" json:"text"`
	HTML    string   `bson:"html" json:"html"`
	Tags    []string `bson:"tags" json:"tags" validate:"max=8,dive,max=10"`
	Private bool     `bson:"private" json:"private"`
}

type Draft struct {
	ID          string `bson:"_id" json:"id"`
	UserID      string `bson:"userId" json:"userId"`
	DraftFields `bson:",inline"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Clone returns a copy whose Tags slice is not shared with f.
func (f DraftFields) Clone() DraftFields {
	c := f
	if f.Tags != nil {
		c.Tags = append([]string(nil), f.Tags...)
	}
	return c
}
