package service

import (
	"strings"
	"time"

	"forum/models"
)

// SummaryLength is the longest body excerpt carried by list results.
const SummaryLength = 256

const unknownAuthor = "Unknown User"

type PostSummary struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Text      string        `json:"text"`
	Tags      []string      `json:"tags"`
	Public    bool          `json:"public"`
	Views     int64         `json:"views"`
	Favorites int64         `json:"favorites"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	User      models.Author `json:"user"`
}

type PostDetail struct {
	PostSummary
	HTML string `json:"html"`
}

// Excerpt collapses whitespace runs to one space, trims, and cuts the result
// to at most n characters.
func Excerpt(text string, n int) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := 0
	for i := range collapsed {
		if runes == n {
			return collapsed[:i]
		}
		runes++
	}
	return collapsed
}

func authorOf(p models.PostWithAuthor) models.Author {
	if p.User == nil {
		return models.Author{ID: p.UserID, Name: unknownAuthor}
	}
	a := *p.User
	if a.Name == "" {
		a.Name = unknownAuthor
	}
	return a
}

func baseView(p models.PostWithAuthor) PostSummary {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostSummary{
		ID:        p.ID,
		Title:     p.Title,
		Text:      p.Text,
		Tags:      tags,
		Public:    p.Public,
		Views:     p.Views,
		Favorites: p.Favorites,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		User:      authorOf(p),
	}
}

// ShapeSummary is the list form of a post: the body is reduced to an excerpt
// and the markup is dropped.
func ShapeSummary(p models.PostWithAuthor) PostSummary {
	s := baseView(p)
	s.Text = Excerpt(p.Text, SummaryLength)
	return s
}

// ShapeDetail keeps the full body and markup.
func ShapeDetail(p models.PostWithAuthor) PostDetail {
	return PostDetail{PostSummary: baseView(p), HTML: p.HTML}
}
