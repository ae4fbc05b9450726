package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PPLive/global"
	"PPLive/global/config"
	"PPLive/logger"
	mid "PPLive/middleware"
	"PPLive/service/chat"
	"PPLive/service/chat/handlers"
	"PPLive/service/health"
	"PPLive/tools/safe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", zap.Error(err))
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	global.ConfigMiddleware(cfg)

	rdb, presence := global.ConfigRedis(ctx, cfg)
	defer rdb.Close()

	pool, ledger, err := global.ConfigLedger(ctx, cfg)
	if err != nil {
		logger.Error("ledger unavailable", zap.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	eventTap := global.ConfigTap(cfg)

	g := chat.NewServer(global.GatewayOptions(cfg), presence, ledger, eventTap)
	handlers.RegisterAll(g)

	// redis only degrades presence; it never takes the gateway out of rotation
	checker := health.NewChecker(health.Config{},
		map[string]health.Pinger{"postgres": ledger},
		map[string]health.Pinger{"redis": presence})
	safe.Go("health-probe", func() { checker.Run(ctx) })

	grpcSrv, grpcAddr, err := health.Serve(cfg.GrpcAddr, checker.Server())
	if err != nil {
		logger.Error("grpc listen failed", zap.String("addr", cfg.GrpcAddr), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("[gRPC] health listening", zap.Stringer("addr", grpcAddr))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), mid.AccessLog(), mid.Manager().Use())
	mid.GET(r, "/ws", g.HandleWS, mid.RouteOpt{IsAuth: true, Auth: global.AuthOptions(cfg)})
	mid.GET(r, "/healthz", checker.Handler(), mid.RouteOpt{})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	safe.Go("http", func() {
		logger.Info("[HTTP] listening", zap.String("addr", cfg.HTTPAddr), zap.Int64("node", cfg.NodeId))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[HTTP] server failed", zap.Error(err))
			stop()
		}
	})

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// sockets are hijacked, so http.Server.Shutdown does not wait for them;
	// the gateway closes them and takes their users offline first
	if err := g.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown incomplete", zap.Error(err))
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	if err := eventTap.Close(); err != nil {
		logger.Warn("tap close", zap.Error(err))
	}
}
