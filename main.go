package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Karthik0956A/clauseai-2.0/internal/analysis"
	"github.com/Karthik0956A/clauseai-2.0/internal/api"
	"github.com/Karthik0956A/clauseai-2.0/internal/compose"
	"github.com/Karthik0956A/clauseai-2.0/internal/config"
	"github.com/Karthik0956A/clauseai-2.0/internal/gemini"
	"github.com/Karthik0956A/clauseai-2.0/internal/ingest"
	"github.com/Karthik0956A/clauseai-2.0/internal/redis"
	"github.com/Karthik0956A/clauseai-2.0/internal/session"
	"github.com/Karthik0956A/clauseai-2.0/internal/storage"
	"github.com/Karthik0956A/clauseai-2.0/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfgPath := os.Getenv("CLAUSEAI_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	dbType := os.Getenv("CLAUSEAI_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	cache, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer cache.Close()

	// External service clients are constructed once here and passed by
	// reference into every handler.
	ai, err := gemini.NewClient(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Fatalf("init gemini client: %v", err)
	}

	authority := session.NewAuthority(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLDays)*24*time.Hour)
	users := store.NewUserStore(db)
	conversations := store.NewConversationStore(db, ai, logger)
	pipeline := ingest.NewPipeline(ai, cache, logger)
	composer := compose.NewComposer(ai, logger)
	analyses := analysis.NewDispatcher(ai, logger)

	handlers := api.NewHandler(users, conversations, authority, pipeline, composer, analyses, logger)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8080"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
