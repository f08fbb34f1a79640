// Package memory is an in-process Store used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"forum/models"
	"forum/repository"

	"github.com/google/uuid"
)

type Store struct {
	mu     sync.RWMutex
	users  map[string]models.User
	posts  map[string]models.Post
	drafts map[string]models.Draft
	// favorites is keyed by favoriteKey.
	favorites map[string]models.Favorite
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:     make(map[string]models.User),
		posts:     make(map[string]models.Post),
		drafts:    make(map[string]models.Draft),
		favorites: make(map[string]models.Favorite),
	}
}

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) FindUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, p models.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	s.users[id] = u
	return nil
}

func (s *Store) CreatePost(_ context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	cp.Tags = append([]string(nil), p.Tags...)
	s.posts[p.ID] = cp
	return nil
}

func (s *Store) withAuthor(p models.Post) models.PostWithAuthor {
	out := models.PostWithAuthor{Post: p}
	if u, ok := s.users[p.UserID]; ok {
		a := u.Author()
		out.User = &a
	}
	return out
}

func (s *Store) FindPublicPost(_ context.Context, id string) (*models.PostWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok || !p.Public {
		return nil, repository.ErrNotFound
	}
	out := s.withAuthor(p)
	return &out, nil
}

func (s *Store) ListPublicPosts(_ context.Context, q repository.PostQuery) ([]models.PostWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Post
	for _, p := range s.posts {
		if !p.Public {
			continue
		}
		if q.Keywords != nil && !containsFold(p.Title, *q.Keywords) && !containsFold(p.Text, *q.Keywords) {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := sortKey(matched[i], q.SortField), sortKey(matched[j], q.SortField)
		if !a.Equal(b) {
			if q.Descending {
				return a.After(b)
			}
			return a.Before(b)
		}
		if q.Descending {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].ID < matched[j].ID
	})

	if q.Offset >= len(matched) {
		return []models.PostWithAuthor{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]models.PostWithAuthor, 0, len(matched))
	for _, p := range matched {
		out = append(out, s.withAuthor(p))
	}
	return out, nil
}

func (s *Store) ListPostsByOwner(_ context.Context, ownerID string) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Post{}
	for _, p := range s.posts {
		if p.UserID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeletePost(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.UserID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.posts, id)
	for key, f := range s.favorites {
		if f.PostID == id {
			delete(s.favorites, key)
		}
	}
	return nil
}

func (s *Store) CreateDraft(_ context.Context, d *models.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	cp := *d
	cp.DraftFields = d.DraftFields.Clone()
	s.drafts[d.ID] = cp
	return nil
}

func (s *Store) FindDraft(_ context.Context, ownerID, id string) (*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok || d.UserID != ownerID {
		return nil, repository.ErrNotFound
	}
	d.DraftFields = d.DraftFields.Clone()
	return &d, nil
}

func (s *Store) UpdateDraft(_ context.Context, d *models.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.drafts[d.ID]
	if !ok || existing.UserID != d.UserID {
		return repository.ErrNotFound
	}
	cp := *d
	cp.DraftFields = d.DraftFields.Clone()
	s.drafts[d.ID] = cp
	return nil
}

func (s *Store) ListDraftsByOwner(_ context.Context, ownerID string) ([]models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Draft{}
	for _, d := range s.drafts {
		if d.UserID == ownerID {
			d.DraftFields = d.DraftFields.Clone()
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) DeleteDraft(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok || d.UserID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.drafts, id)
	return nil
}

func favoriteKey(userID, postID string) string {
	return userID + "\x00" + postID
}

func (s *Store) AddFavorite(_ context.Context, f *models.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[f.PostID]
	if !ok || !p.Public {
		return repository.ErrNotFound
	}
	key := favoriteKey(f.UserID, f.PostID)
	if _, ok := s.favorites[key]; ok {
		return repository.ErrDuplicate
	}
	s.favorites[key] = *f
	p.Favorites++
	s.posts[f.PostID] = p
	return nil
}

func (s *Store) RemoveFavorite(_ context.Context, userID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := favoriteKey(userID, postID)
	if _, ok := s.favorites[key]; !ok {
		return repository.ErrNotFound
	}
	delete(s.favorites, key)
	if p, ok := s.posts[postID]; ok && p.Favorites > 0 {
		p.Favorites--
		s.posts[postID] = p
	}
	return nil
}

func (s *Store) ListFavoritePosts(_ context.Context, userID string) ([]models.PostWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var favs []models.Favorite
	for _, f := range s.favorites {
		if f.UserID == userID {
			favs = append(favs, f)
		}
	}
	sort.Slice(favs, func(i, j int) bool {
		if !favs[i].CreatedAt.Equal(favs[j].CreatedAt) {
			return favs[i].CreatedAt.After(favs[j].CreatedAt)
		}
		return favs[i].PostID > favs[j].PostID
	})

	out := []models.PostWithAuthor{}
	for _, f := range favs {
		if p, ok := s.posts[f.PostID]; ok && p.Public {
			out = append(out, s.withAuthor(p))
		}
	}
	return out, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func sortKey(p models.Post, field string) time.Time {
	if field == repository.SortUpdatedAt {
		return p.UpdatedAt
	}
	return p.CreatedAt
}
