// Package sqlitestore implements repository.Store on an embedded SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"forum/models"
	"forum/repository"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

var sortColumns = map[string]string{
	repository.SortCreatedAt: "p.created_at",
	repository.SortUpdatedAt: "p.updated_at",
}

type Store struct {
	db *sql.DB
}

var _ repository.Store = (*Store)(nil)

func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			name          TEXT NOT NULL DEFAULT '',
			bio           TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS posts (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			title      TEXT NOT NULL,
			text       TEXT NOT NULL,
			html       TEXT NOT NULL,
			tags       TEXT NOT NULL DEFAULT '[]',
			public     BOOLEAN NOT NULL,
			views      INTEGER NOT NULL DEFAULT 0,
			favorites  INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);
		CREATE INDEX IF NOT EXISTS posts_public_created_idx ON posts (public, created_at);
		CREATE INDEX IF NOT EXISTS posts_public_updated_idx ON posts (public, updated_at);

		CREATE TABLE IF NOT EXISTS drafts (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			title      TEXT NOT NULL,
			text       TEXT NOT NULL,
			html       TEXT NOT NULL,
			tags       TEXT NOT NULL DEFAULT '[]',
			private    BOOLEAN NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);
		CREATE INDEX IF NOT EXISTS drafts_user_updated_idx ON drafts (user_id, updated_at);

		CREATE TABLE IF NOT EXISTS favorites (
			user_id    TEXT NOT NULL,
			post_id    TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, post_id),
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
		);
	`)
	return err
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, name, bio, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID, u.Email, u.PasswordHash, u.Name, u.Bio, u.CreatedAt.UTC())
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return repository.ErrDuplicate
	}
	return err
}

func (s *Store) findUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, name, bio, created_at FROM users WHERE "+where, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Bio, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *Store) UpdateProfile(ctx context.Context, id string, p models.ProfileUpdate) error {
	return s.execOwned(ctx,
		"UPDATE users SET name = COALESCE(?, name), bio = COALESCE(?, bio) WHERE id = ?",
		p.Name, p.Bio, id)
}

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, title, text, html, tags, public, views, favorites, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Title, p.Text, p.HTML, tags, p.Public, p.Views, p.Favorites, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return err
}

const postWithAuthorColumns = `p.id, p.user_id, p.title, p.text, p.html, p.tags, p.public, p.views, p.favorites,
	p.created_at, p.updated_at, u.id, u.name, u.bio`

type scanner interface {
	Scan(dest ...any) error
}

func scanPostWithAuthor(row scanner) (models.PostWithAuthor, error) {
	var (
		out                 models.PostWithAuthor
		tags                string
		authorID, name, bio sql.NullString
	)
	err := row.Scan(&out.ID, &out.UserID, &out.Title, &out.Text, &out.HTML, &tags, &out.Public,
		&out.Views, &out.Favorites, &out.CreatedAt, &out.UpdatedAt, &authorID, &name, &bio)
	if err != nil {
		return out, err
	}
	if out.Tags, err = decodeTags(tags); err != nil {
		return out, err
	}
	if authorID.Valid {
		out.User = &models.Author{ID: authorID.String, Name: name.String, Bio: bio.String}
	}
	return out, nil
}

func (s *Store) FindPublicPost(ctx context.Context, id string) (*models.PostWithAuthor, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+postWithAuthorColumns+" FROM posts p LEFT JOIN users u ON u.id = p.user_id WHERE p.id = ? AND p.public = 1", id)
	p, err := scanPostWithAuthor(row)
	if errors.Is(err, sql.ErrNoRows) {
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
		return nil, fmt.Errorf("sqlitestore: unsupported sort field %q", q.SortField)
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}

	query := "SELECT " + postWithAuthorColumns + " FROM posts p LEFT JOIN users u ON u.id = p.user_id WHERE p.public = 1"
	var args []any
	if q.Keywords != nil && *q.Keywords != "" {
		pattern := repository.LikePattern(*q.Keywords)
		query += ` AND (fold(p.title) LIKE fold(?) ESCAPE '\' OR fold(p.text) LIKE fold(?) ESCAPE '\')`
		args = append(args, pattern, pattern)
	}
	query += fmt.Sprintf(" ORDER BY %s %s, p.id %s LIMIT ? OFFSET ?", column, dir, dir)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, text, html, tags, public, views, favorites, created_at, updated_at
		 FROM posts WHERE user_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var (
			p    models.Post
			tags string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Text, &p.HTML, &tags, &p.Public,
			&p.Views, &p.Favorites, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if p.Tags, err = decodeTags(tags); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *Store) DeletePost(ctx context.Context, ownerID, id string) error {
	return s.execOwned(ctx, "DELETE FROM posts WHERE id = ? AND user_id = ?", id, ownerID)
}

func (s *Store) CreateDraft(ctx context.Context, d *models.Draft) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	tags, err := encodeTags(d.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO drafts (id, user_id, title, text, html, tags, private, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		d.ID, d.UserID, d.Title, d.Text, d.HTML, tags, d.Private, d.UpdatedAt.UTC())
	return err
}

const draftColumns = "id, user_id, title, text, html, tags, private, updated_at"

func scanDraft(row scanner) (models.Draft, error) {
	var (
		d    models.Draft
		tags string
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Title, &d.Text, &d.HTML, &tags, &d.Private, &d.UpdatedAt); err != nil {
		return d, err
	}
	var err error
	d.Tags, err = decodeTags(tags)
	return d, err
}

func (s *Store) FindDraft(ctx context.Context, ownerID, id string) (*models.Draft, error) {
	d, err := scanDraft(s.db.QueryRowContext(ctx,
		"SELECT "+draftColumns+" FROM drafts WHERE id = ? AND user_id = ?", id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) UpdateDraft(ctx context.Context, d *models.Draft) error {
	tags, err := encodeTags(d.Tags)
	if err != nil {
		return err
	}
	return s.execOwned(ctx,
		"UPDATE drafts SET title = ?, text = ?, html = ?, tags = ?, private = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		d.Title, d.Text, d.HTML, tags, d.Private, d.UpdatedAt.UTC(), d.ID, d.UserID)
}

func (s *Store) ListDraftsByOwner(ctx context.Context, ownerID string) ([]models.Draft, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+draftColumns+" FROM drafts WHERE user_id = ? ORDER BY updated_at DESC", ownerID)
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
	return s.execOwned(ctx, "DELETE FROM drafts WHERE id = ? AND user_id = ?", id, ownerID)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) AddFavorite(ctx context.Context, f *models.Favorite) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO favorites (user_id, post_id, created_at) SELECT ?, id, ? FROM posts WHERE id = ? AND public = 1",
			f.UserID, f.CreatedAt.UTC(), f.PostID)
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return repository.ErrDuplicate
		}
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return repository.ErrNotFound
		}
		_, err = tx.ExecContext(ctx, "UPDATE posts SET favorites = favorites + 1 WHERE id = ?", f.PostID)
		return err
	})
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, postID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM favorites WHERE user_id = ? AND post_id = ?", userID, postID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return repository.ErrNotFound
		}
		_, err = tx.ExecContext(ctx, "UPDATE posts SET favorites = max(favorites - 1, 0) WHERE id = ?", postID)
		return err
	})
}

func (s *Store) ListFavoritePosts(ctx context.Context, userID string) ([]models.PostWithAuthor, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+postWithAuthorColumns+` FROM favorites f
		 JOIN posts p ON p.id = f.post_id
		 LEFT JOIN users u ON u.id = p.user_id
		 WHERE f.user_id = ? AND p.public = 1
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

// execOwned runs a statement scoped to one row and reports ErrNotFound when
// nothing matched.
func (s *Store) execOwned(ctx context.Context, stmt string, args ...any) error {
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	return string(b), err
}

func decodeTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}
