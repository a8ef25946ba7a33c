package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"casino-client/internal/auth"
	"casino-client/internal/config"
	"casino-client/internal/simulator"
	"casino-client/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var st store.Store
	if cfg.RedisAddr != "" {
		st, err = store.NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
		logger.WithField("addr", cfg.RedisAddr).Info("using redis store")
	} else {
		st = store.NewMemory()
		logger.Info("using in-memory store")
	}
	defer st.Close()

	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL)
	engine := simulator.NewEngine(st, cfg.HouseEdgePercent, logger)
	handler := simulator.NewHandler(engine, tokens, logger)

	// A ready-made token so a local client can connect immediately.
	devToken, err := tokens.Issue("dev-player")
	if err != nil {
		logger.WithError(err).Fatal("failed to issue dev token")
	}
	logger.WithField("token", devToken).Info("dev player token")

	logger.WithField("port", cfg.Port).Info("simulator starting")
	if err := handler.Router().Run(":" + cfg.Port); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
