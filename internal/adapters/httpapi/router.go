// Package httpapi mounts the gateway's HTTP surface: the websocket
// endpoint plus a couple of operational read-only endpoints.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/adapters/ws"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/registry"
)

func SetupRouter(cfg *config.Config, ctrl *ws.Controller, reg *registry.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, reg.Occupancy())
	})
	api.GET("/ws", ctrl.Handle)

	log.Info().Str("module", "httpapi").Msg("router setup")
	return r
}
