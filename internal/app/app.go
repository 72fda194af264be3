package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/syncwatch/server/internal/controller"
	chatRedis "github.com/syncwatch/server/internal/repository/chat/redis"
	connInmemory "github.com/syncwatch/server/internal/repository/connection/inmemory"
	roomInmemory "github.com/syncwatch/server/internal/repository/room/inmemory"
	"github.com/syncwatch/server/internal/search"
	"github.com/syncwatch/server/internal/service/room"
	"github.com/syncwatch/server/pkg/ctxlogger"
	"github.com/syncwatch/server/pkg/redisclient"
)

type AppConfig struct {
	Host          string  `json:"host"`
	Port          int     `json:"port"`
	LogLevel      string  `json:"log_level"`
	MembersLimit  int     `json:"members_limit"`
	QueueLimit    int     `json:"queue_limit"`
	TickIntervalS float64 `json:"tick_interval_s"`
	PipedAPIURL   string  `json:"piped_api_url"`
	RedisHost     string  `json:"redis_host"`
	RedisPort     int     `json:"redis_port"`
	RedisPassword string  `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.QueueLimit < 1 {
		return fmt.Errorf("queue limit must be greater than 0")
	}
	if cfg.TickIntervalS <= 0 {
		return fmt.Errorf("tick interval must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}
	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := roomInmemory.NewRepo()
	connRepo := connInmemory.NewRepo()
	chatRepo := chatRedis.NewRepo(rc, 24*time.Hour)

	roomService := room.NewService(roomRepo, connRepo, chatRepo, clockwork.NewRealClock(), logger, &room.Config{
		MembersLimit: cfg.MembersLimit,
		QueueLimit:   cfg.QueueLimit,
		TickInterval: time.Duration(cfg.TickIntervalS * float64(time.Second)),
	})

	searchService := search.NewService(
		search.NewYouTube(search.YouTubeConfig{}),
		[]search.Provider{search.NewPiped(nil, cfg.PipedAPIURL)},
		logger,
	)

	controller := controller.NewController(roomService, searchService, connRepo, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
