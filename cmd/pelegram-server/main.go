package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/config"
	"github.com/Pabblusansky/Pelegram-sub000/logger"
	"github.com/Pabblusansky/Pelegram-sub000/middleware"
	"github.com/Pabblusansky/Pelegram-sub000/module/chat/api"
	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
	chatsvc "github.com/Pabblusansky/Pelegram-sub000/module/chat/service"
	"github.com/Pabblusansky/Pelegram-sub000/module/chat/store"
	"github.com/Pabblusansky/Pelegram-sub000/service/gateway"
	"github.com/Pabblusansky/Pelegram-sub000/service/natsx"
	"github.com/Pabblusansky/Pelegram-sub000/service/presence"
	"github.com/Pabblusansky/Pelegram-sub000/service/storage"
	"github.com/Pabblusansky/Pelegram-sub000/tools/ids"
	"github.com/Pabblusansky/Pelegram-sub000/tools/security"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	var confPath string
	flag.StringVar(&confPath, "c", "", "comma-separated config files")
	flag.Parse()

	var cfg *config.Config
	var err error
	if confPath == "" {
		cfg = config.Default()
		logger.Warn("no config file given, running with defaults")
	} else if cfg, err = config.Load(confPath); err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}

	ids.SetNodeID(cfg.NodeID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoCli, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Errorf("mongo connect: %v", err)
		os.Exit(1)
	}
	db := mongoCli.Database(cfg.Mongo.Database)
	st := store.NewMongo(db)
	if err := st.EnsureIndexes(ctx); err != nil {
		logger.Errorf("ensure indexes: %v", err)
		os.Exit(1)
	}

	rdb, err := storage.NewClient(ctx, storage.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	if err != nil {
		logger.Errorf("redis connect: %v", err)
		os.Exit(1)
	}
	presenceStore := storage.NewPresenceStore(rdb, cfg.Presence.IdleThreshold)

	nodeID := ids.GenerateString()
	rooms := gateway.NewRooms()
	hub := gateway.NewHub(nodeID, rooms, 4, 4096)

	tracker := presence.NewTracker(presence.Config{
		SweepEvery:    cfg.Presence.SweepEvery,
		IdleThreshold: cfg.Presence.IdleThreshold,
	}, presenceStore, func(snapshot map[string]model.PresenceRecord) {
		hub.BroadcastAll(chatsvc.EvUserStatusUpdate, snapshot)
	})

	svc := chatsvc.New(st, hub, chatsvc.Options{DeliveredAfter: cfg.Delivery.DeliveredAfter})

	jwtOpts := security.Options{Secret: []byte(cfg.Auth.Secret), Alg: "HS256", TTL: cfg.Auth.TTL}
	ws := gateway.NewServer(rooms, hub, svc, tracker, jwtOpts)

	var bridge *natsx.Bridge
	if cfg.Nats.Enabled {
		bridge, err = natsx.Connect(natsx.Options{Servers: cfg.Nats.Servers, Subject: cfg.Nats.Subject})
		if err != nil {
			logger.Errorf("nats connect: %v", err)
			os.Exit(1)
		}
		hub.SetBridge(bridge)
		if err := bridge.Subscribe(hub); err != nil {
			logger.Errorf("nats subscribe: %v", err)
			os.Exit(1)
		}
	}

	tracker.Start()

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Cors())
	r.GET("/ws", ws.HandleWS)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api.NewHandler(svc, hub).Register(r, jwtOpts)

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r}
	go func() {
		logger.Infof("listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	tracker.Stop()
	if bridge != nil {
		bridge.Close()
	}
	_ = mongoCli.Disconnect(shutdownCtx)
	_ = rdb.Close()
	logger.Sync()
}
