package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharetube/watchsync/internal/controller"
	"github.com/sharetube/watchsync/internal/repository/connection/inmemory"
	roomredis "github.com/sharetube/watchsync/internal/repository/room/redis"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/internal/transport/redisbus"
	"github.com/sharetube/watchsync/pkg/ctxlogger"
	"github.com/sharetube/watchsync/pkg/redisclient"
	"github.com/sharetube/watchsync/pkg/validator"
)

const shutdownTimeout = 30 * time.Second

type AppConfig struct {
	Secret        string        `json:"-" validate:"required"`
	Host          string        `json:"host"`
	Port          int           `json:"port" validate:"gte=1,max=65535"`
	MembersLimit  int           `json:"members_limit" validate:"gte=0"`
	LogLevel      string        `json:"log_level" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	RoomExpire    time.Duration `json:"room_expire" validate:"gte=0"`
	TokenTTL      time.Duration `json:"token_ttl" validate:"gte=0"`
	RedisPort     int           `json:"redis_port" validate:"gte=1,max=65535"`
	RedisHost     string        `json:"redis_host" validate:"required"`
	RedisPassword string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	return validator.NewValidator().Struct(cfg)
}

func NewLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

// App is one relay instance. Instances sharing a redis server serve the same
// rooms.
type App struct {
	handler http.Handler
	sub     *redisbus.Subscription
	deliver func(context.Context, redisbus.Envelope)
	logger  *slog.Logger
}

func New(ctx context.Context, cfg *AppConfig, rc *redis.Client, logger *slog.Logger) (*App, error) {
	roomRepo := roomredis.NewRepo(rc, logger, cfg.RoomExpire)
	connectionRepo := inmemory.NewRepo(logger)
	roomService := room.NewService(roomRepo, connectionRepo, &room.Config{
		Secret:       cfg.Secret,
		MembersLimit: cfg.MembersLimit,
		TokenTTL:     cfg.TokenTTL,
	}, logger)

	bus := redisbus.New(rc, logger)
	sub, err := bus.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	c := controller.NewController(roomService, bus, logger)

	return &App{
		handler: c.GetMux(),
		sub:     sub,
		deliver: c.Deliver,
		logger:  logger,
	}, nil
}

func (a *App) Handler() http.Handler {
	return a.handler
}

// Deliver relays bus traffic to local connections until ctx is done.
func (a *App) Deliver(ctx context.Context) error {
	return a.sub.Run(ctx, a.deliver)
}

func (a *App) Close() error {
	return a.sub.Close()
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	// graceful shutdown
	serverCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	a, err := New(serverCtx, cfg, rc, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	go func() {
		if err := a.Deliver(serverCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorContext(serverCtx, "bus delivery stopped", "error", err)
		}
	}()

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: a.Handler()}

	shutdownErr := make(chan error, 1)
	go func() {
		<-serverCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(serverCtx), shutdownTimeout)
		defer cancel()

		logger.InfoContext(shutdownCtx, "shutting down")
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-shutdownErr
}
