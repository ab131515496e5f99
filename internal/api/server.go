package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"avatar-hub/internal/config"
	"avatar-hub/internal/postgres"
	"avatar-hub/internal/redis"
	"avatar-hub/internal/security"
	"avatar-hub/internal/stats"
	"avatar-hub/internal/storage"
	"avatar-hub/internal/syncer"
)

// Server is the HTTP surface the UI consumes. The core library (cache, state,
// sync engine) is injected, never constructed here; one shared engine
// instance serializes all optimistic mutations.
type Server struct {
	log       *slog.Logger
	cfg       config.Config
	store     *postgres.AvatarStore
	redis     *redis.Client
	engine    *syncer.Engine
	refresher *stats.Refresher
	images    storage.ImageClient
	fallback  *security.LimiterStore
	router    *gin.Engine

	// avatars whose content associations were loaded from the store; an
	// empty association set alone cannot tell "no content" from "never
	// seeded"
	seededMu sync.Mutex
	seeded   map[string]struct{}
}

func NewServer(log *slog.Logger, cfg config.Config, store *postgres.AvatarStore, redisClient *redis.Client, engine *syncer.Engine, refresher *stats.Refresher, images storage.ImageClient) *Server {
	s := &Server{
		log:       log,
		cfg:       cfg,
		store:     store,
		redis:     redisClient,
		engine:    engine,
		refresher: refresher,
		images:    images,
		// in-process fallback when the redis window is unreachable
		fallback: security.NewLimiterStore(rate.Limit(1), 60, 10*time.Minute),
		router:   gin.New(),
		seeded:   make(map[string]struct{}),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.inputValidationMiddleware())
	r.Use(s.rateLimitMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.health)

		v1.GET("/avatars/:avatar_id", s.getAvatar)
		v1.GET("/avatars/:avatar_id/view", s.getViewMode)
		v1.GET("/avatars/:avatar_id/stats", s.getStats)
		v1.GET("/avatars/:avatar_id/contents", s.getContents)
		v1.POST("/avatars/:avatar_id/contents/transfer", s.transferContent)
		v1.PUT("/avatars/:avatar_id", s.updateAvatar)
		v1.DELETE("/avatars/:avatar_id", s.deleteAvatar)
		v1.POST("/avatars/:avatar_id/image", s.uploadImage)

		v1.GET("/owners/:owner_id/avatars", s.listOwnerAvatars)
		v1.POST("/owners/:owner_id/avatars/resync", s.resyncOwner)
		v1.POST("/owners/:owner_id/active", s.setActiveAvatar)

		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.GET("/cache/stats", s.cacheStats)
			admin.POST("/cache/clear", s.clearCache)
			admin.GET("/pending", s.pendingOps)
			admin.GET("/snapshots", s.snapshotHistory)
			admin.POST("/snapshots/restore", s.restoreSnapshot)
		}
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}

// requesterID is the authenticated caller identity supplied by the session
// layer in front of this service. Empty means guest.
func requesterID(c *gin.Context) string {
	return c.GetHeader("X-Requester-ID")
}

func (s *Server) contentsSeeded(avatarID string) bool {
	s.seededMu.Lock()
	defer s.seededMu.Unlock()
	_, ok := s.seeded[avatarID]
	return ok
}

func (s *Server) markContentsSeeded(avatarID string) {
	s.seededMu.Lock()
	defer s.seededMu.Unlock()
	s.seeded[avatarID] = struct{}{}
}
