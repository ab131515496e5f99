package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"avatar-hub/internal/fault"
	"avatar-hub/internal/models"
	"avatar-hub/internal/security"
	"avatar-hub/internal/viewmode"
)

const profileCacheTTL = 60 * time.Second

// writeFault maps a core error onto the HTTP envelope: one status per fault
// kind plus a retryable flag so the UI can pick between retry, refresh,
// login and permanent-error handling.
func (s *Server) writeFault(c *gin.Context, err error) {
	kind, ok := fault.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal", "message": "internal error", "retryable": false},
		})
		return
	}

	status := http.StatusInternalServerError
	switch kind {
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindUnauthorized:
		status = http.StatusForbidden
		if requesterID(c) == "" {
			status = http.StatusUnauthorized
		}
	case fault.KindValidation:
		status = http.StatusBadRequest
	case fault.KindNetwork, fault.KindSync:
		status = http.StatusBadGateway
	case fault.KindCache:
		status = http.StatusInternalServerError
	}

	retryable := false
	msg := err.Error()
	var fe *fault.Error
	if errors.As(err, &fe) {
		retryable = fe.Retryable()
		if fe.Msg != "" {
			msg = fe.Msg
		}
	}

	c.JSON(status, gin.H{
		"error": gin.H{
			"code":      kind.String(),
			"message":   msg,
			"retryable": retryable,
		},
	})
}

// loadAvatar reads through the layers: live state, in-memory cache, then the
// remote store (priming both on the way back).
func (s *Server) loadAvatar(ctx context.Context, id string) (models.Avatar, error) {
	if av, ok := s.engine.State().Avatar(id); ok {
		return av, nil
	}
	if av, ok := s.engine.Cache().GetAvatar(id); ok {
		return av, nil
	}

	av, err := s.store.Fetch(ctx, id)
	if err != nil {
		return models.Avatar{}, err
	}
	s.engine.Cache().PutAvatar(av)
	s.engine.State().SetAvatar(av)
	return av, nil
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	status := gin.H{"status": "healthy", "database": "connected", "redis": "connected"}
	code := http.StatusOK

	if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		status["redis"] = "unreachable"
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, status)
}

func (s *Server) getAvatar(c *gin.Context) {
	avatarID := c.Param("avatar_id")
	if err := security.ValidateID(avatarID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_avatar_id", "message": err.Error()}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	// view counter is fire-and-forget; a lost increment is acceptable
	_, _ = s.redis.Increment(ctx, "avatar:views:"+avatarID, 24*time.Hour)

	// shared cache first: rendered JSON straight out
	if cached, err := s.redis.GetProfile(ctx, avatarID); err == nil && cached != "" {
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "application/json", []byte(cached))
		return
	}

	av, err := s.loadAvatar(ctx, avatarID)
	if err != nil {
		s.writeFault(c, err)
		return
	}

	body := gin.H{"avatar": av}
	if st, ok := s.engine.Cache().GetStats(avatarID); ok {
		body["stats"] = st
	}

	if raw, err := json.Marshal(body); err == nil {
		_ = s.redis.SetProfile(ctx, avatarID, raw, profileCacheTTL)
	}

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, body)
}

func (s *Server) getViewMode(c *gin.Context) {
	avatarID := c.Param("avatar_id")
	if err := security.ValidateID(avatarID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_avatar_id", "message": err.Error()}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	av, err := s.loadAvatar(ctx, avatarID)
	if err != nil {
		s.writeFault(c, err)
		return
	}

	// social state comes from the caller; the follow graph lives outside
	// this service
	rel := viewmode.Relation{
		IsFollowing: c.Query("following") == "true",
		IsBlocked:   c.Query("blocked") == "true",
	}

	mode := viewmode.Determine(av.OwnerID, requesterID(c))
	c.JSON(http.StatusOK, gin.H{
		"view_mode":      mode.String(),
		"actions":        viewmode.AvailableActions(mode, rel),
		"primary_action": viewmode.PrimaryAction(mode, rel),
	})
}

func (s *Server) getStats(c *gin.Context) {
	avatarID := c.Param("avatar_id")
	if err := security.ValidateID(avatarID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_avatar_id", "message": err.Error()}})
		return
	}

	if st, ok := s.engine.Cache().GetStats(avatarID); ok {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, gin.H{"stats": st})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	st, err := s.store.ComputeStats(ctx, avatarID)
	if err != nil {
		s.writeFault(c, err)
		return
	}
	s.engine.Cache().PutStats(st)

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, gin.H{"stats": st})
}

func (s *Server) getContents(c *gin.Context) {
	avatarID := c.Param("avatar_id")
	if err := security.ValidateID(avatarID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_avatar_id", "message": err.Error()}})
		return
	}

	index := s.engine.State().Contents()
	ids := index.ContentsOf(avatarID)

	// seed the association index from the store on first access only; an
	// empty fetched list still counts as seeded
	if len(ids) == 0 && !s.contentsSeeded(avatarID) {
		ctx, cancel := s.ctx(c)
		defer cancel()

		fetched, err := s.store.ListContentIDs(ctx, avatarID)
		if err != nil {
			s.writeFault(c, err)
			return
		}
		for _, id := range fetched {
			index.Associate(avatarID, id)
		}
		s.markContentsSeeded(avatarID)
		ids = fetched
	}

	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"avatar_id": avatarID, "content_ids": ids})
}

type transferRequest struct {
	ContentID  string `json:"content_id" binding:"required"`
	ToAvatarID string `json:"to_avatar_id" binding:"required"`
}

// transferContent moves one content item between two avatars of the same
// owner. Both sides are checked before the index is touched.
func (s *Server) transferContent(c *gin.Context) {
	avatarID := c.Param("avatar_id")
	if err := security.ValidateID(avatarID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_avatar_id", "message": err.Error()}})
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_body", "message": "content_id and to_avatar_id are required"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	from, err := s.loadAvatar(ctx, avatarID)
	if err != nil {
		s.writeFault(c, err)
		return
	}
	to, err := s.loadAvatar(ctx, req.ToAvatarID)
	if err != nil {
		s.writeFault(c, err)
		return
	}

	if err := viewmode.ValidatePermission(viewmode.ActionManageAvatars, from.OwnerID, requesterID(c), viewmode.Relation{}); err != nil {
		s.writeFault(c, err)
		return
	}
	if to.OwnerID != from.OwnerID {
		s.writeFault(c, fault.New(fault.KindValidation, "api.transferContent",
			"avatars "+from.ID+" and "+to.ID+" have different owners"))
		return
	}

	index := s.engine.State().Contents()
	if owner, ok := index.Owner(req.ContentID); !ok || owner != avatarID {
		s.writeFault(c, fault.New(fault.KindNotFound, "api.transferContent",
			"content "+req.ContentID+" not associated with avatar "+avatarID))
		return
	}

	index.Transfer(req.ContentID, avatarID, req.ToAvatarID)
	s.log.Info("content_transferred", "content_id", req.ContentID, "from", avatarID, "to", req.ToAvatarID)

	c.JSON(http.StatusOK, gin.H{"content_id": req.ContentID, "avatar_id": req.ToAvatarID})
}

func (s *Server) listOwnerAvatars(c *gin.Context) {
	ownerID := c.Param("owner_id")
	if err := security.ValidateID(ownerID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_owner_id", "message": err.Error()}})
		return
	}

	if avatars, ok := s.engine.Cache().GetOwnerList(ownerID); ok {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, gin.H{"owner_id": ownerID, "avatars": avatars})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	// cross-instance cache before hitting the store
	if cached, err := s.redis.GetOwnerList(ctx, ownerID); err == nil && cached != "" {
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "application/json", []byte(cached))
		return
	}

	avatars, err := s.engine.ResyncOwner(ctx, ownerID, func(ctx context.Context) ([]models.Avatar, error) {
		return s.store.ListByOwner(ctx, ownerID)
	})
	if err != nil {
		s.writeFault(c, err)
		return
	}

	if avatars == nil {
		avatars = []models.Avatar{}
	}

	body := gin.H{"owner_id": ownerID, "avatars": avatars}
	if raw, err := json.Marshal(body); err == nil {
		_ = s.redis.SetOwnerList(ctx, ownerID, raw, profileCacheTTL)
	}

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, body)
}

func (s *Server) resyncOwner(c *gin.Context) {
	ownerID := c.Param("owner_id")
	if err := security.ValidateID(ownerID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_owner_id", "message": err.Error()}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	avatars, err := s.engine.ResyncOwner(ctx, ownerID, func(ctx context.Context) ([]models.Avatar, error) {
		return s.store.ListByOwner(ctx, ownerID)
	})
	if err != nil {
		s.writeFault(c, err)
		return
	}

	_ = s.redis.InvalidateOwnerList(ctx, ownerID)
	for _, av := range avatars {
		_ = s.redis.InvalidateProfile(ctx, av.ID)
	}

	c.JSON(http.StatusOK, gin.H{"owner_id": ownerID, "count": len(avatars)})
}

// updatePatch is the subset of avatar fields a profile edit may change. The
// owner field is immutable and never bound.
type updatePatch struct {
	DisplayName       *string                   `json:"display_name"`
	Bio               *string                   `json:"bio"`
	Niche             *models.Niche             `json:"niche"`
	Personality       []models.PersonalityTrait `json:"personality"`
	Backstory         *string                   `json:"backstory"`
	VoiceStyle        *string                   `json:"voice_style"`
	AutonomousPosting *bool                     `json:"autonomous_posting"`
	Metadata          map[string]string         `json:"metadata"`
}

func (s *Server) updateAvatar(c *gin.Context) {
	avatarID := c.Param("avatar_id")
	if err := security.ValidateID(avatarID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_avatar_id", "message": err.Error()}})
		return
	}

	var patch updatePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_body", "message": "malformed json body"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	current, err := s.loadAvatar(ctx, avatarID)
	if err != nil {
		s.writeFault(c, err)
		return
	}

	if err := viewmode.ValidatePermission(viewmode.ActionEdit, current.OwnerID, requesterID(c), viewmode.Relation{}); err != nil {
		s.writeFault(c, err)
		return
	}

	next := current.Clone()
	if patch.DisplayName != nil {
		next.DisplayName = *patch.DisplayName
	}
	if patch.Bio != nil {
		next.Bio = *patch.Bio
	}
	if patch.Niche != nil {
		next.Niche = *patch.Niche
	}
	if patch.Personality != nil {
		next.Personality = patch.Personality
	}
	if patch.Backstory != nil {
		next.Backstory = patch.Backstory
	}
	if patch.VoiceStyle != nil {
		next.VoiceStyle = patch.VoiceStyle
	}
	if patch.AutonomousPosting != nil {
		next.AutonomousPosting = *patch.AutonomousPosting
	}
	if patch.Metadata != nil {
		next.Metadata = patch.Metadata
	}

	err = s.engine.UpdateAvatar(ctx, avatarID, next, func(ctx context.Context) error {
		return s.store.Update(ctx, next)
	})
	if err != nil {
		s.writeFault(c, err)
		return
	}

	_ = s.redis.InvalidateProfile(ctx, avatarID)
	_ = s.redis.InvalidateOwnerList(ctx, next.OwnerID)
	s.refresher.Enqueue(ctx, avatarID)

	c.JSON(http.StatusOK, gin.H{"avatar": next})
}

type setActiveRequest struct {
	AvatarID string `json:"avatar_id" binding:"required"`
}

func (s *Server) setActiveAvatar(c *gin.Context) {
	ownerID := c.Param("owner_id")
	if err := security.ValidateID(ownerID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_owner_id", "message": err.Error()}})
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_body", "message": "avatar_id is required"}})
		return
	}

	if err := viewmode.ValidatePermission(viewmode.ActionSwitchAvatar, ownerID, requesterID(c), viewmode.Relation{}); err != nil {
		s.writeFault(c, err)
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	av, err := s.loadAvatar(ctx, req.AvatarID)
	if err != nil {
		s.writeFault(c, err)
		return
	}

	err = s.engine.SetActiveAvatar(ctx, ownerID, av, func(ctx context.Context) error {
		return s.store.SetActive(ctx, ownerID, av.ID)
	})
	if err != nil {
		s.writeFault(c, err)
		return
	}

	_ = s.redis.InvalidateProfile(ctx, av.ID)
	_ = s.redis.InvalidateOwnerList(ctx, ownerID)

	c.JSON(http.StatusOK, gin.H{"owner_id": ownerID, "active_avatar_id": av.ID})
}

func (s *Server) deleteAvatar(c *gin.Context) {
	avatarID := c.Param("avatar_id")
	if err := security.ValidateID(avatarID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_avatar_id", "message": err.Error()}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	av, err := s.loadAvatar(ctx, avatarID)
	if err != nil {
		s.writeFault(c, err)
		return
	}

	if err := viewmode.ValidatePermission(viewmode.ActionDelete, av.OwnerID, requesterID(c), viewmode.Relation{}); err != nil {
		s.writeFault(c, err)
		return
	}

	orphaned, err := s.engine.DeleteAvatar(ctx, avatarID, func(ctx context.Context) error {
		return s.store.Delete(ctx, avatarID)
	})
	if err != nil {
		s.writeFault(c, err)
		return
	}

	_ = s.redis.InvalidateProfile(ctx, avatarID)
	_ = s.redis.InvalidateOwnerList(ctx, av.OwnerID)

	if orphaned == nil {
		orphaned = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "orphaned_content_ids": orphaned})
}

func (s *Server) uploadImage(c *gin.Context) {
	avatarID := c.Param("avatar_id")
	if err := security.ValidateID(avatarID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_avatar_id", "message": err.Error()}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	current, err := s.loadAvatar(ctx, avatarID)
	if err != nil {
		s.writeFault(c, err)
		return
	}

	if err := viewmode.ValidatePermission(viewmode.ActionEdit, current.OwnerID, requesterID(c), viewmode.Relation{}); err != nil {
		s.writeFault(c, err)
		return
	}

	const maxUpload = 5 << 20
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpload+1))
	if err != nil || len(data) == 0 || len(data) > maxUpload {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_image", "message": "image missing or larger than 5MB"}})
		return
	}

	url, err := s.images.UploadAvatarImage(avatarID, data)
	if err != nil {
		s.log.Warn("image_upload_failed", "avatar_id", avatarID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"code": "upload_failed", "message": "image upload failed", "retryable": true}})
		return
	}

	next := current.Clone()
	next.ImageURL = &url

	err = s.engine.UpdateAvatar(ctx, avatarID, next, func(ctx context.Context) error {
		return s.store.Update(ctx, next)
	})
	if err != nil {
		s.writeFault(c, err)
		return
	}

	_ = s.redis.InvalidateProfile(ctx, avatarID)

	c.JSON(http.StatusOK, gin.H{"avatar_id": avatarID, "image_url": url})
}

func (s *Server) cacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cache":             s.engine.Cache().Stats(),
		"stats_queue_depth": s.refresher.QueueDepth(),
	})
}

func (s *Server) clearCache(c *gin.Context) {
	s.engine.Cache().ClearAll()
	s.log.Info("cache_cleared_by_admin")
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (s *Server) pendingOps(c *gin.Context) {
	tr := s.engine.Pending()
	stale := tr.CheckTimeouts(s.cfg.PendingTimeout)
	if stale == nil {
		stale = []string{}
	}
	ids := tr.IDs()
	if ids == nil {
		ids = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count": tr.Count(),
		"ids":   ids,
		"stale": stale,
	})
}

func (s *Server) snapshotHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":      s.engine.History().Len(),
		"timestamps": s.engine.History().Timestamps(),
	})
}

func (s *Server) restoreSnapshot(c *gin.Context) {
	restored := s.engine.History().RestoreLatest(s.engine.State())
	if restored {
		// live state changed under the cache; drop everything stale
		s.engine.Cache().ClearAll()
		s.log.Info("snapshot_restored_by_admin")
	}
	c.JSON(http.StatusOK, gin.H{"restored": restored})
}
