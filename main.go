package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"arenasync/server"
	"arenasync/store"
)

// arenasync 入口：加载配置，初始化存储与道具，启动 WebSocket 同步服务与道具调度
func main() {
	var (
		addr       string
		configPath string
		logFile    string
		envFile    string
		debug      bool
	)
	flag.StringVar(&addr, "addr", "", "server listen address, e.g. :8080 (overrides config)")
	flag.StringVar(&configPath, "config", "", "YAML config file")
	flag.StringVar(&logFile, "log", "", "log file path (overrides config)")
	flag.StringVar(&envFile, "env", ".env", "dotenv file with ARENA_* overrides")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	if err := run(addr, configPath, logFile, envFile, debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr, configPath, logFile, envFile string, debug bool) error {
	envErr := godotenv.Load(envFile)

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.LogFile, level); err != nil {
		return err
	}
	defer func() { _ = server.SyncLogger() }()
	if envErr != nil {
		server.Log.Infow("no dotenv file loaded, using process environment", "file", envFile)
	}

	mem := store.NewMemory()
	if err := server.Bootstrap(mem, cfg, nil); err != nil {
		return fmt.Errorf("bootstrap store: %w", err)
	}
	srv := server.New(cfg, mem)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			server.Log.Errorw("spawn scheduler exited", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWS)
	// 管理与监控接口
	mux.HandleFunc("/admin/config", srv.HandleAdminConfig)
	mux.HandleFunc("/metrics", srv.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		server.Log.Infof("arenasync listening on %s", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 优雅退出（Ctrl+C）
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}
	server.Log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		server.Log.Warnw("http shutdown", "error", err)
	}
	if err := srv.Shutdown(); err != nil {
		server.Log.Warnw("close connections", "error", err)
	}
	return nil
}
