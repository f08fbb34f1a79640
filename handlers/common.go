package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"reflect"
	"strings"
	"time"

	"forum/middleware"
	"forum/models"
	"forum/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const requestTimeout = 10 * time.Second

// Handler serves every route; the services are injected by main.
type Handler struct {
	Accounts  *service.Accounts
	Drafts    *service.Drafts
	Publisher *service.Publisher
	Posts     *service.Posts
	Favorites *service.Favorites
}

func New(accounts *service.Accounts, drafts *service.Drafts, publisher *service.Publisher, posts *service.Posts, favorites *service.Favorites) *Handler {
	return &Handler{Accounts: accounts, Drafts: drafts, Publisher: publisher, Posts: posts, Favorites: favorites}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, models.Response{Code: status, Data: data, Message: message})
}

// fail converts a service error into the response envelope. Storage failures
// are logged here and reported without detail.
func fail(c *gin.Context, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		e = &service.Error{Kind: service.KindStorage, Message: "server error", Err: err}
	}

	status := http.StatusBadRequest
	message := e.Message
	switch e.Kind {
	case service.KindUnauthenticated:
		status = http.StatusUnauthorized
		if message == "" {
			message = middleware.MsgLoginFirst
		}
	case service.KindExpired:
		status = http.StatusUnauthorized
		message = middleware.MsgLoginExpired
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindConflict:
		status = http.StatusConflict
	case service.KindStorage:
		log.Printf("[%s %s] %v", c.Request.Method, c.FullPath(), e)
		message = "server error"
	}
	if message == "" {
		message = "parameters invalid"
	}
	respond(c, status, nil, message)
}

// bindFailure reports a request body that failed gin binding, naming the
// first offending field when the validator provides one.
func bindFailure(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		field := ve[0].Field()
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		fail(c, &service.Error{Kind: service.KindInvalidInput, Field: field, Message: field + " is invalid"})
		return
	}
	fail(c, &service.Error{Kind: service.KindInvalidInput, Message: "parameters invalid"})
}

// currentUser resolves the verified identity to a user row. On failure the
// response has been written and ok is false.
func (h *Handler) currentUser(ctx context.Context, c *gin.Context) (*models.User, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		fail(c, service.ErrUnauthenticated)
		return nil, false
	}
	user, err := h.Accounts.Resolve(ctx, id)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return user, true
}

// JSONFieldNames makes validator errors report json names instead of Go
// field names. Call once on gin's validator engine.
func JSONFieldNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}
