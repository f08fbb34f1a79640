package routes

import (
	"net/http"
	"strings"
	"time"

	"forum/handlers"
	"forum/middleware"
	"forum/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type Options struct {
	AllowOrigins []string
	// AuthLimiter throttles the register and login endpoints; nil disables it.
	AuthLimiter *middleware.IPRateLimiter
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		handlers.JSONFieldNames(v)
	}
}

func SetupRouter(h *handlers.Handler, verifier middleware.Verifier, opts Options) *gin.Engine {
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	corsConfig := cors.Config{
		AllowOrigins:     opts.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(opts.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	optional := middleware.Authenticate(verifier, false)
	required := middleware.Authenticate(verifier, true)

	throttle := func(c *gin.Context) { c.Next() }
	if opts.AuthLimiter != nil {
		throttle = middleware.RateLimit(opts.AuthLimiter)
	}

	// Posts
	post := router.Group("/post")
	post.GET("/detail", optional, h.GetPost)
	post.GET("/search", h.SearchPosts)
	post.POST("/submit", required, h.SubmitPost)
	post.DELETE("/remove", required, h.RemovePost)
	post.POST("/favorite", required, h.AddFavorite)
	post.DELETE("/favorite", required, h.RemoveFavorite)

	// Users
	user := router.Group("/user")
	user.POST("/add", throttle, h.Register)
	user.POST("/session", throttle, h.Login)
	user.POST("/session/verify", required, h.VerifySession)
	user.GET("/info", h.UserInfo)
	user.PUT("/profile", required, h.UpdateMyProfile)
	user.GET("/post/list", required, h.MyPosts)
	user.GET("/favorite/list", required, h.ListFavorites)

	// Drafts
	draft := router.Group("/draft", required)
	draft.POST("/save", h.SaveDraft)
	draft.GET("/list", h.ListDrafts)
	draft.DELETE("/remove", h.RemoveDraft)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.Response{
			Code:    http.StatusNotFound,
			Data:    nil,
			Message: "endpoint not found: " + strings.TrimSpace(c.Request.URL.Path),
		})
	})

	return router
}
