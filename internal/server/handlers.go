package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"snapshoot-sync/internal/transport/httpdto"
	snapshoot_errors "snapshoot-sync/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Health != nil {
		if err := s.deps.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
}

func (s *Server) status(c *gin.Context) {
	resp := httpdto.StatusResponse{
		Online:  s.deps.Connectivity.Online(),
		Syncing: s.deps.Sync.Running(),
	}

	claims, err := s.deps.Session.Claims(c.Request.Context())
	switch {
	case err == nil:
		resp.Authenticated = true
		resp.UserID = claims.UserID
		if !claims.ExpiresAt.IsZero() {
			exp := claims.ExpiresAt
			resp.TokenExpiresAt = &exp
		}
	case errors.Is(err, snapshoot_errors.ErrNotAuthenticated):
	default:
		s.logger.Warn(c.Request.Context(), "reading session claims", zap.Error(err))
	}

	depths, err := s.deps.Sync.Depths(c.Request.Context())
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", snapshoot_errors.ErrStoreUnavailable, err))
		return
	}
	resp.Queues = depths

	if rep, ok := s.deps.Sync.LastReport(); ok {
		resp.LastSync = &rep
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

// sync runs a pass on the request and answers with its report. A skipped
// pass is still a 200; the report says why.
func (s *Server) sync(c *gin.Context) {
	if async, _ := strconv.ParseBool(c.Query("async")); async {
		// the pass outlives the request
		s.deps.Sync.Trigger(context.WithoutCancel(c.Request.Context()))
		c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(httpdto.SyncAccepted{Started: true}))
		return
	}
	rep := s.deps.Sync.Sync(c.Request.Context())
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewSyncResponse(rep)))
}

// connectivity overrides the probed network state. Going online fires the
// same edge a probe would.
func (s *Server) connectivity(c *gin.Context) {
	var req httpdto.ConnectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", snapshoot_errors.ErrInvalidInput, err))
		return
	}
	s.deps.Connectivity.SetOnline(*req.Online)
	online := s.deps.Connectivity.Online()
	if s.deps.Hub != nil {
		s.deps.Hub.PublishConnectivity(online)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ConnectivityResponse{Online: online}))
}
