package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talentpay/internal/config"
	"talentpay/internal/handler"
	"talentpay/internal/infrastructure/cache"
	"talentpay/internal/infrastructure/database"
	"talentpay/internal/infrastructure/lock"
	"talentpay/internal/infrastructure/mq"
	"talentpay/internal/job"
	"talentpay/internal/service"
	"talentpay/pkg/idgen"
	"talentpay/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker-id", 1, "流水号生成器的机器ID")
	flag.Parse()

	// 加载配置
	cfg := config.LoadConfig(*configPath)
	logger.Init(cfg.Server.LogLevel)

	if err := run(cfg, *workerID); err != nil {
		slog.Error("服务异常退出", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, workerID int64) error {
	// 初始化 ID 生成器
	if err := idgen.Init(workerID); err != nil {
		return err
	}

	// 初始化 MySQL
	db, err := database.InitMySQL(&cfg.MySQL)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	// 初始化 Redis
	redisClient, err := cache.InitRedis(&cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	locker := lock.NewLocker(redisClient, cfg.Business.LockTTL())

	// 初始化 Kafka
	publisher, err := mq.InitKafka(&cfg.Kafka)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 首次启动写入默认分账策略
	if err := service.NewFeeConfigService(db).EnsureDefault(ctx, cfg.FeePolicy); err != nil {
		return fmt.Errorf("初始化默认分账策略失败: %w", err)
	}

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, publisher, cfg)
	go outboxSender.Start(ctx)

	heldFundsMonitor := job.NewHeldFundsMonitor(service.NewTeamFundService(db, locker, cfg), cfg)
	go heldFundsMonitor.Start(ctx)

	payoutDispatcher := job.NewPayoutDispatcher(service.NewWithdrawalService(db, locker, cfg), cfg)
	go payoutDispatcher.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, locker, cfg)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("服务启动", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	slog.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("服务关闭异常", "err", err)
	}

	slog.Info("服务已关闭")
	return nil
}
