package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lireddit/backend/internal/config"
	"github.com/lireddit/backend/internal/database"
	"github.com/lireddit/backend/internal/handlers"
	"github.com/lireddit/backend/internal/middleware"
)

type Server struct {
	cfg     config.Config
	db      *database.Database
	handler *handlers.Handler
	log     *zap.Logger
}

// New configures the router and returns an http.Server ready to listen.
func New(cfg config.Config, db *database.Database, log *zap.Logger) *http.Server {
	gin.SetMode(cfg.GinMode)
	router := NewRouter(cfg, db, log)

	log.Info("server starting", zap.String("port", cfg.Port))
	return &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewRouter wires the handlers into a gin engine. Split out of New so tests
// can drive the full route table against their own database.
func NewRouter(cfg config.Config, db *database.Database, log *zap.Logger) *gin.Engine {
	s := &Server{
		cfg:     cfg,
		db:      db,
		handler: handlers.NewHandler(db.DB, cfg, log),
		log:     log,
	}
	return s.RegisterRoutes()
}

// RegisterRoutes sets up all application routes.
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(s.log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.db.Health())
	})

	secret := []byte(s.cfg.JWTSecret)
	withLoaders := middleware.WithLoaders(s.handler.Users, s.handler.Votes)

	api := r.Group("/api")
	{
		// Credential endpoints (public, rate limited)
		creds := api.Group("", middleware.RateLimit(s.cfg.AuthRatePerMinute))
		{
			creds.POST("/register", s.handler.Auth.Register)
			creds.POST("/login", s.handler.Auth.Login)
			creds.POST("/forgot-password", s.handler.Auth.ForgotPassword)
			creds.POST("/reset-password", s.handler.Auth.ResetPassword)
		}

		// Public reads; authentication is optional so viewer-specific
		// fields (vote_status, own email) can still resolve.
		public := api.Group("", middleware.OptionalAuth(secret), withLoaders)
		{
			public.GET("/posts", s.handler.Post.GetPosts)
			public.GET("/posts/:id", s.handler.Post.GetPost)
			public.GET("/users/:id", s.handler.User.GetUserProfile)
		}

		// Protected routes (authentication required)
		protected := api.Group("", middleware.RequireAuth(secret), withLoaders)
		{
			protected.GET("/me", s.handler.Auth.GetMe)
			protected.POST("/posts", s.handler.Post.CreatePost)
			protected.PUT("/posts/:id", s.handler.Post.UpdatePost)
			protected.DELETE("/posts/:id", s.handler.Post.DeletePost)
			protected.POST("/posts/:id/vote", s.handler.Post.VotePost)
		}
	}

	return r
}
