package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"smartgreenhouse/internal/authority"
	"smartgreenhouse/internal/bridge"
	"smartgreenhouse/internal/config"
	"smartgreenhouse/internal/db"
	"smartgreenhouse/internal/discovery"
	"smartgreenhouse/internal/manager"
	"smartgreenhouse/internal/metrics"
	"smartgreenhouse/internal/mqtt"
	"smartgreenhouse/internal/notify"
	"smartgreenhouse/internal/redis"
	"smartgreenhouse/internal/session"
	"smartgreenhouse/internal/utils"
	"smartgreenhouse/internal/web"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat, "greenhouse-console")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, closeProvider, err := openSessionProvider(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open session store", zap.String("backend", cfg.SessionBackend), zap.Error(err))
	}
	defer closeProvider()

	keeper := session.NewKeeper(provider, logger.Named("session"))
	if err := keeper.Init(ctx); err != nil {
		logger.Fatal("Failed to load session", zap.Error(err))
	}

	baseURL, err := discovery.ResolveURL(ctx, cfg.AuthorityURL, cfg.AuthorityMDNSName, discovery.MDNS(logger.Named("discovery")))
	if err != nil {
		logger.Warn("Authority discovery failed, using configured URL", zap.Error(err))
		baseURL = cfg.AuthorityURL
	}

	var mgr *manager.Manager
	client := authority.NewClient(authority.Options{
		BaseURL: baseURL,
		Timeout: cfg.RequestTimeout,
		Tokens:  keeper,
		OnUnauthorized: func(ctx context.Context) {
			if err := mgr.Logout(ctx); err != nil {
				logger.Warn("Failed to clear session after 401", zap.Error(err))
			}
		},
		Logger: logger.Named("authority"),
	})

	inbox := notify.NewInbox(100)
	m := metrics.New()
	mgr = manager.New(client, manager.Options{
		Notifier: notify.Fanout{inbox, notify.NewLogNotifier(logger.Named("notice"))},
		Recorder: m,
		Session:  keeper,
		Logger:   logger.Named("manager"),
	})

	if cfg.MQTTBroker != "" {
		mqttClient, err := mqtt.NewMQTTClient(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			logger.Fatal("Failed to connect to MQTT", zap.Error(err))
		}
		defer mqttClient.Disconnect(250)
		mgr.AddObserver(mqtt.NewPublisher(mqttClient, logger.Named("mqtt")))
	}

	if cfg.DBURL != "" {
		dbConn, err := db.NewDB(ctx, cfg.DBURL)
		if err != nil {
			logger.Fatal("Failed to connect to DB", zap.Error(err))
		}
		defer dbConn.Close()
		if err := dbConn.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to prepare audit table", zap.Error(err))
		}
		mgr.AddObserver(dbConn)
	}

	if keeper.Current().LoggedIn() {
		if err := mgr.Start(ctx); err != nil {
			logger.Warn("Initial greenhouse load failed", zap.Error(err))
		}
	}

	webServer := web.NewWebServer(mgr, keeper, inbox, m, logger.Named("web"))
	go func() {
		if err := webServer.Start(cfg.ListenAddr); err != nil {
			logger.Error("Console API stopped", zap.Error(err))
			stop()
		}
	}()

	if cfg.BridgeRelayURL != "" {
		agent := bridge.NewAgent(bridge.Config{
			RelayURL: cfg.BridgeRelayURL,
			LocalURL: cfg.BridgeLocalURL,
			AgentID:  cfg.BridgeAgentID,
		}, logger.Named("bridge"))
		go agent.Run(ctx)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Console API shutdown", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

func openSessionProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Provider, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionRedis:
		client, err := redis.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisProvider(client, cfg.SessionName), func() { client.Close() }, nil
	case config.SessionSQLite:
		p, err := session.OpenSQLiteProvider(ctx, cfg.SQLitePath, cfg.SessionName)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	default:
		if cfg.SessionBackend != config.SessionMemory {
			logger.Warn("Unknown session backend, keeping the session in memory", zap.String("backend", cfg.SessionBackend))
		}
		return session.NewMemoryProvider(), func() {}, nil
	}
}
