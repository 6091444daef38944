package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/kannan2410/saashrm/internal/config"
	"github.com/kannan2410/saashrm/internal/db"
	clog "github.com/kannan2410/saashrm/internal/log"
	"github.com/kannan2410/saashrm/internal/server"
	"github.com/kannan2410/saashrm/internal/service"
	"github.com/kannan2410/saashrm/internal/storage"
	"github.com/kannan2410/saashrm/internal/ws"
)

func main() {
	// main 负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	var blobs storage.Store
	if cfg.BlobBackend == "s3" {
		blobs, err = storage.NewS3Store(context.Background(), storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("s3 store")
		}
	} else {
		blobs = storage.NewLocalStore(cfg.BlobLocalDir)
	}

	channels := service.NewChannelService(gdb)
	messages := service.NewMessageService(gdb)

	hub := ws.NewHub()
	presence := ws.NewPresence()
	gateway := ws.NewGateway(cfg, hub, presence, channels, messages)

	h := server.NewHandler(cfg, channels, messages, blobs)
	r := server.SetupRouter(cfg, h, gateway)

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("chat server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
