package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"forum/models"
	"forum/repository"
)

const (
	PageSize = 5
	maxPage  = 1 << 20
)

type Mode int

const (
	ModeDetail Mode = iota + 1
	ModeFeed
	ModeSearch
)

// ListingRequest holds the raw read-path parameters. Empty strings mean the
// parameter was absent; Keywords is nil when absent and may point to "".
type ListingRequest struct {
	ID        string
	Type      string
	Page      string
	SortField string
	SortOrder string
	Keywords  *string
}

type ListingQuery struct {
	Mode  Mode
	ID    string
	Page  int
	Posts repository.PostQuery
}

var errBadParameters = invalid("", "parameters invalid")

// BuildPostQuery selects between the detail and category feed shapes.
func BuildPostQuery(r ListingRequest) (ListingQuery, error) {
	switch {
	case r.ID != "" && (r.Type == "" || r.Type == "detail") &&
		r.Page == "" && r.SortField == "" && r.SortOrder == "" && r.Keywords == nil:
		return ListingQuery{Mode: ModeDetail, ID: r.ID}, nil

	case r.ID == "" && (r.Type == "" || r.Type == "category") &&
		r.Page != "" && r.SortField != "" && r.Keywords == nil:
		page, err := parsePage(r.Page)
		if err != nil {
			return ListingQuery{}, err
		}
		field, err := parseSortField(r.SortField)
		if err != nil {
			return ListingQuery{}, err
		}
		return ListingQuery{
			Mode: ModeFeed,
			Page: page,
			Posts: repository.PostQuery{
				SortField:  field,
				Descending: true,
				Offset:     (page - 1) * PageSize,
				Limit:      PageSize,
			},
		}, nil
	}
	return ListingQuery{}, errBadParameters
}

// BuildSearchQuery validates a keyword search. An empty keyword matches everything.
func BuildSearchQuery(r ListingRequest) (ListingQuery, error) {
	if r.Page == "" || r.SortField == "" || r.SortOrder == "" || r.Keywords == nil {
		return ListingQuery{}, errBadParameters
	}
	page, err := parsePage(r.Page)
	if err != nil {
		return ListingQuery{}, err
	}
	field, err := parseSortField(r.SortField)
	if err != nil {
		return ListingQuery{}, err
	}
	desc, err := parseSortOrder(r.SortOrder)
	if err != nil {
		return ListingQuery{}, err
	}
	keywords := *r.Keywords
	return ListingQuery{
		Mode: ModeSearch,
		Page: page,
		Posts: repository.PostQuery{
			Keywords:   &keywords,
			SortField:  field,
			Descending: desc,
			Offset:     (page - 1) * PageSize,
			Limit:      PageSize,
		},
	}, nil
}

func parsePage(raw string) (int, error) {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 || page > maxPage {
		return 0, invalid("page", "page must be a positive integer")
	}
	return page, nil
}

func parseSortField(raw string) (string, error) {
	switch raw {
	case repository.SortCreatedAt, repository.SortUpdatedAt:
		return raw, nil
	}
	return "", invalid("sortField", "cannot sort by %q", raw)
}

func parseSortOrder(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "desc":
		return true, nil
	case "asc":
		return false, nil
	}
	return false, invalid("sortOrder", "sort order must be asc or desc")
}

// Posts serves the public read paths and the owner's own post list.
type Posts struct {
	repo repository.PostRepository
}

func NewPosts(repo repository.PostRepository) *Posts {
	return &Posts{repo: repo}
}

func (p *Posts) Detail(ctx context.Context, id string) (PostDetail, error) {
	post, err := p.repo.FindPublicPost(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return PostDetail{}, notFound("the post does not exist or is not public")
	}
	if err != nil {
		return PostDetail{}, storage("find post", err)
	}
	return ShapeDetail(*post), nil
}

// List runs a feed or search query. No match is an empty page, not an error.
func (p *Posts) List(ctx context.Context, q ListingQuery) ([]PostSummary, error) {
	if q.Mode != ModeFeed && q.Mode != ModeSearch {
		return nil, errBadParameters
	}
	posts, err := p.repo.ListPublicPosts(ctx, q.Posts)
	if err != nil {
		return nil, storage("list posts", err)
	}
	out := make([]PostSummary, 0, len(posts))
	for _, post := range posts {
		out = append(out, ShapeSummary(post))
	}
	return out, nil
}

// Mine lists every post the owner wrote, private ones included.
func (p *Posts) Mine(ctx context.Context, owner models.Author) ([]PostSummary, error) {
	posts, err := p.repo.ListPostsByOwner(ctx, owner.ID)
	if err != nil {
		return nil, storage("list own posts", err)
	}
	out := make([]PostSummary, 0, len(posts))
	for _, post := range posts {
		out = append(out, ShapeSummary(models.PostWithAuthor{Post: post, User: &owner}))
	}
	return out, nil
}
