package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"forum/auth"
	"forum/models"
	"forum/repository"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	MaxNameLength     = 30
	MaxBioLength      = 200
)

// Accounts handles registration, login and resolving session identities.
type Accounts struct {
	users  repository.UserRepository
	tokens *auth.Issuer
	now    func() time.Time
	// Cost is the bcrypt cost used for new password hashes.
	Cost int
}

func NewAccounts(users repository.UserRepository, tokens *auth.Issuer) *Accounts {
	return &Accounts{users: users, tokens: tokens, now: time.Now, Cost: bcrypt.DefaultCost}
}

func (a *Accounts) Register(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return "", invalid("email", "email is invalid")
	}
	if len(password) < minPasswordLength {
		return "", invalid("password", "password must be at least %d characters", minPasswordLength)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), a.Cost)
	if err != nil {
		return "", &Error{Kind: KindInvalidInput, Field: "password", Message: "password cannot be used", Err: err}
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hashed),
		Name:         email[:strings.Index(email, "@")],
		CreatedAt:    a.now().UTC(),
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", &Error{Kind: KindConflict, Field: "email", Message: "email already in use"}
		}
		return "", storage("create user", err)
	}

	return a.issue(user)
}

func (a *Accounts) Login(ctx context.Context, email, password string) (string, error) {
	user, err := a.users.FindUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return "", &Error{Kind: KindUnauthenticated, Message: "invalid email or password"}
	}
	if err != nil {
		return "", storage("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", &Error{Kind: KindUnauthenticated, Message: "invalid email or password"}
	}

	return a.issue(user)
}

func (a *Accounts) issue(user *models.User) (string, error) {
	token, err := a.tokens.Issue(user)
	if err != nil {
		return "", storage("issue token", err)
	}
	return token, nil
}

// Resolve loads the user a verified identity refers to. A token for a user
// that no longer exists authorizes nothing.
func (a *Accounts) Resolve(ctx context.Context, id auth.Identity) (*models.User, error) {
	user, err := a.users.FindUserByEmail(ctx, id.Email)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && user.ID != id.UserID) {
		return nil, &Error{Kind: KindUnauthenticated, Message: "please log in first"}
	}
	if err != nil {
		return nil, storage("resolve user", err)
	}
	return user, nil
}

func (a *Accounts) Profile(ctx context.Context, userID string) (models.Author, error) {
	user, err := a.users.FindUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Author{}, notFound("user does not exist")
	}
	if err != nil {
		return models.Author{}, storage("find user", err)
	}
	return user.Author(), nil
}

// UpdateProfile changes the caller's display name and bio and returns the
// resulting public profile.
func (a *Accounts) UpdateProfile(ctx context.Context, userID string, p models.ProfileUpdate) (models.Author, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
			return models.Author{}, invalid("name", "name must be 1 to %d characters", MaxNameLength)
		}
		p.Name = &name
	}
	if p.Bio != nil && utf8.RuneCountInString(*p.Bio) > MaxBioLength {
		return models.Author{}, invalid("bio", "bio is longer than %d characters", MaxBioLength)
	}

	if !p.Empty() {
		err := a.users.UpdateProfile(ctx, userID, p)
		if errors.Is(err, repository.ErrNotFound) {
			return models.Author{}, notFound("user does not exist")
		}
		if err != nil {
			return models.Author{}, storage("update profile", err)
		}
	}
	return a.Profile(ctx, userID)
}
