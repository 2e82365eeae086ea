package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"playdeck/server"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := server.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}

	telemetry := server.NewTelemetry()
	lobby := server.NewLobby(cfg, logger, telemetry)
	defer lobby.Close()
	router := server.NewRouter(lobby, cfg, logger, telemetry)

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	engine.GET("/diagnostics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"serverTime": time.Now().UnixMilli(),
			"rooms":      lobby.RoomCount(),
			"telemetry":  telemetry.Snapshot(),
		})
	})
	engine.GET("/ws", func(c *gin.Context) {
		router.ServeWS(c.Writer, c.Request)
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: engine}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}
