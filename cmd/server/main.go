package main

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/necpition205/playtable/game"
	"github.com/necpition205/playtable/shared/configs"
	"github.com/necpition205/playtable/shared/logger"
)

func main() {
	log := logger.Setup(configs.Envs.GIN_MODE != "release")

	addr := configs.Envs.ADDR
	if addr == "" {
		addr = ":3000"
	}

	if configs.Envs.GIN_MODE == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if origins := configs.Envs.ALLOWED_ORIGINS; origins != "" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Split(origins, ","),
			AllowCredentials: true,
			AllowHeaders:     []string{"Content-Type", "Origin"},
		}))
	}

	if configs.Envs.STATIC_DIR != "" {
		r.Static("/app", configs.Envs.STATIC_DIR)
	}

	registry := game.NewRegistry()
	hub := game.NewHub(registry, log)
	handler := game.NewHandler(hub, registry, log)
	handler.RegisterRoutes(r)

	log.Info().Str("addr", addr).Msg("playtable server listening")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
