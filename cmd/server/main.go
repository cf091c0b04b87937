package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/system-design/14-card-game/internal"
)

func main() {
	var (
		configPath = flag.String("config", "", "設定檔路徑（留空使用預設值）")
		port       = flag.Int("port", 0, "覆寫監聽埠")
		logLevel   = flag.String("log-level", "", "覆寫日誌等級 (debug/info/warn/error)")
		logFormat  = flag.String("log-format", "", "覆寫日誌格式 (text/json)")
	)
	flag.Parse()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "載入設定失敗: %v\n", err)
		os.Exit(1)
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	logger := setupLogger(cfg.Log)

	manager := internal.NewManager(cfg.Rooms.ManagerConfig(), logger)
	game := internal.NewSimpleCardGame(nil)
	gameServer := internal.NewGameServer(manager, game, logger)
	wsServer := internal.NewWSServer(gameServer, logger)
	handler := internal.NewHandler(gameServer, wsServer, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("伺服器啟動",
			"port", cfg.Server.Port,
			"game", game.Config().Name,
			"max_rooms", cfg.Rooms.MaxRooms)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("伺服器錯誤", "error", err)
			os.Exit(1)
		}
	}()

	// 優雅關閉
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到關閉信號，開始優雅關閉")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("關閉伺服器失敗", "error", err)
	}

	manager.Stop()

	logger.Info("伺服器已關閉")
}

// setupLogger 依設定建立 slog.Logger
func setupLogger(cfg internal.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
