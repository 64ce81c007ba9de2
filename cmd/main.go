package main

import (
	"log"

	infra "github.com/educatodos/player-gateway/internal/infrastructure"
	"github.com/educatodos/player-gateway/internal/infrastructure/driver"
	"github.com/educatodos/player-gateway/internal/infrastructure/logging"
	"github.com/educatodos/player-gateway/internal/infrastructure/uuid"
	ihttp "github.com/educatodos/player-gateway/internal/interfaces/http"
	"github.com/educatodos/player-gateway/internal/session"
	"github.com/educatodos/player-gateway/internal/tracker"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	logger = logger.With(
		zap.String("service.id", option.AppID),
	)
	defer logger.Sync()

	var rdb driver.KeyValueDB
	if option.KVStore.Enabled {
		rdb = driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)
		logger.Debug("Create redis connection instance",
			zap.String("kv.host", option.KVStore.Host),
			zap.Int("kv.port", option.KVStore.Port),
		)
	}

	IDGenerator := uuid.NewNanoIDGenerator(option.Session.IDLength)
	SessionManager := session.NewManager(&session.ManagerConfig{
		BackendBaseURL:  option.Backend.BaseURL,
		BackendTimeout:  option.Backend.Timeout,
		AuthRefreshURL:  option.Auth.RefreshURL,
		SessionTTL:      option.Session.TTL,
		CatalogCacheTTL: option.Session.CatalogCacheTTL,
	}, IDGenerator, rdb, tracker.NewTicker, logger)
	defer SessionManager.Close()

	ihttp.Serve(option, SessionManager, rdb, logger)
}
