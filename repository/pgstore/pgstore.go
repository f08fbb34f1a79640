// Package pgstore implements repository.Store on PostgreSQL through pgx.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"forum/models"
	"forum/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	bio           TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	title      TEXT NOT NULL,
	text       TEXT NOT NULL,
	html       TEXT NOT NULL,
	tags       TEXT[] NOT NULL DEFAULT '{}',
	public     BOOLEAN NOT NULL,
	views      BIGINT NOT NULL DEFAULT 0,
	favorites  BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS posts_public_created_idx ON posts (public, created_at DESC);
CREATE INDEX IF NOT EXISTS posts_public_updated_idx ON posts (public, updated_at DESC);
CREATE INDEX IF NOT EXISTS posts_user_idx ON posts (user_id);

CREATE TABLE IF NOT EXISTS drafts (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	title      TEXT NOT NULL,
	text       TEXT NOT NULL,
	html       TEXT NOT NULL,
	tags       TEXT[] NOT NULL DEFAULT '{}',
	private    BOOLEAN NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS drafts_user_updated_idx ON drafts (user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS favorites (
	user_id    TEXT NOT NULL REFERENCES users(id),
	post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, post_id)
);
`

var sortColumns = map[string]string{
	repository.SortCreatedAt: "p.created_at",
	repository.SortUpdatedAt: "p.updated_at",
}

type Store struct {
	pool *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

// New creates the schema if it is missing.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, bio, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Bio, u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrDuplicate
	}
	return err
}

func (s *Store) findUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, name, bio, created_at FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Bio, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email = $1", email)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "id = $1", id)
}

func (s *Store) UpdateProfile(ctx context.Context, id string, p models.ProfileUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET name = COALESCE($2, name), bio = COALESCE($3, bio) WHERE id = $1`,
		id, p.Name, p.Bio)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO posts (id, user_id, title, text, html, tags, public, views, favorites, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.UserID, p.Title, p.Text, p.HTML, nonNil(p.Tags), p.Public, p.Views, p.Favorites, p.CreatedAt, p.UpdatedAt)
	return err
}

const postWithAuthorColumns = `p.id, p.user_id, p.title, p.text, p.html, p.tags, p.public, p.views, p.favorites,
	p.created_at, p.updated_at, u.id, u.name, u.bio`

func scanPostWithAuthor(row pgx.Row) (models.PostWithAuthor, error) {
	var (
		out                 models.PostWithAuthor
		authorID, name, bio *string
	)
	err := row.Scan(&out.ID, &out.UserID, &out.Title, &out.Text, &out.HTML, &out.Tags, &out.Public,
		&out.Views, &out.Favorites, &out.CreatedAt, &out.UpdatedAt, &authorID, &name, &bio)
	if err != nil {
		return out, err
	}
	if authorID != nil {
		out.User = &models.Author{ID: *authorID, Name: deref(name), Bio: deref(bio)}
	}
	return out, nil
}

func (s *Store) FindPublicPost(ctx context.Context, id string) (*models.PostWithAuthor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postWithAuthorColumns+` FROM posts p LEFT JOIN users u ON u.id = p.user_id
		 WHERE p.id = $1 AND p.public = TRUE`, id)
	p, err := scanPostWithAuthor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPublicPosts(ctx context.Context, q repository.PostQuery) ([]models.PostWithAuthor, error) {
	column, ok := sortColumns[q.SortField]
	if !ok {
		return nil, fmt.Errorf("pgstore: unsupported sort field %q", q.SortField)
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}

	var sb strings.Builder
	args := []any{}
	sb.WriteString(`SELECT ` + postWithAuthorColumns + ` FROM posts p LEFT JOIN users u ON u.id = p.user_id WHERE p.public = TRUE`)
	if q.Keywords != nil && *q.Keywords != "" {
		args = append(args, repository.LikePattern(*q.Keywords))
		sb.WriteString(` AND (p.title ILIKE $1 ESCAPE '\' OR p.text ILIKE $1 ESCAPE '\')`)
	}
	args = append(args, q.Limit, q.Offset)
	fmt.Fprintf(&sb, ` ORDER BY %s %s, p.id %s LIMIT $%d OFFSET $%d`, column, dir, dir, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.PostWithAuthor{}
	for rows.Next() {
		p, err := scanPostWithAuthor(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *Store) ListPostsByOwner(ctx context.Context, ownerID string) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, text, html, tags, public, views, favorites, created_at, updated_at
		 FROM posts WHERE user_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Text, &p.HTML, &p.Tags, &p.Public,
			&p.Views, &p.Favorites, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *Store) DeletePost(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) CreateDraft(ctx context.Context, d *models.Draft) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO drafts (id, user_id, title, text, html, tags, private, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.UserID, d.Title, d.Text, d.HTML, nonNil(d.Tags), d.Private, d.UpdatedAt)
	return err
}

const draftColumns = `id, user_id, title, text, html, tags, private, updated_at`

func scanDraft(row pgx.Row) (models.Draft, error) {
	var d models.Draft
	err := row.Scan(&d.ID, &d.UserID, &d.Title, &d.Text, &d.HTML, &d.Tags, &d.Private, &d.UpdatedAt)
	return d, err
}

func (s *Store) FindDraft(ctx context.Context, ownerID, id string) (*models.Draft, error) {
	d, err := scanDraft(s.pool.QueryRow(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = $1 AND user_id = $2`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) UpdateDraft(ctx context.Context, d *models.Draft) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE drafts SET title = $3, text = $4, html = $5, tags = $6, private = $7, updated_at = $8
		 WHERE id = $1 AND user_id = $2`,
		d.ID, d.UserID, d.Title, d.Text, d.HTML, nonNil(d.Tags), d.Private, d.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ListDraftsByOwner(ctx context.Context, ownerID string) ([]models.Draft, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE user_id = $1 ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drafts := []models.Draft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func (s *Store) DeleteDraft(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM drafts WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) AddFavorite(ctx context.Context, f *models.Favorite) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO favorites (user_id, post_id, created_at)
			 SELECT $1::text, id, $3::timestamptz FROM posts WHERE id = $2 AND public = TRUE`,
			f.UserID, f.PostID, f.CreatedAt)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicate
		}
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE posts SET favorites = favorites + 1 WHERE id = $1`, f.PostID)
		return err
	})
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, postID string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND post_id = $2`, userID, postID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE posts SET favorites = GREATEST(favorites - 1, 0) WHERE id = $1`, postID)
		return err
	})
}

func (s *Store) ListFavoritePosts(ctx context.Context, userID string) ([]models.PostWithAuthor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postWithAuthorColumns+` FROM favorites f
		 JOIN posts p ON p.id = f.post_id
		 LEFT JOIN users u ON u.id = p.user_id
		 WHERE f.user_id = $1 AND p.public = TRUE
		 ORDER BY f.created_at DESC, p.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.PostWithAuthor{}
	for rows.Next() {
		p, err := scanPostWithAuthor(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
