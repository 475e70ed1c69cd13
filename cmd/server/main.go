package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gallery/internal/app"
	"gallery/internal/config"
	"gallery/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("配置加载完成，开始启动服务",
		"db_driver", cfg.DBDriver,
		"storage_driver", cfg.StorageDriver,
		"auth_enabled", cfg.AuthEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := app.OpenRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repos.Close()

	store, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}

	svcs, err := app.NewServices(cfg, repos, store, logger)
	if err != nil {
		return err
	}
	router, err := app.NewHandler(cfg, svcs, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		ReadHeaderTimeout: 5 * time.Second,
		// 上传和 zip 下载可能很慢，不设置整体读写超时
		IdleTimeout: 120 * time.Second,
		Handler:     router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("服务监听端口", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("优雅关闭失败", "error", err)
		return err
	}
	logger.Info("服务已停止")
	return nil
}
