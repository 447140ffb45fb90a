package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elsa-quiz-room/internal/app"
	"elsa-quiz-room/internal/config"
	"elsa-quiz-room/internal/infra/memory"
	"elsa-quiz-room/internal/infra/postgres"
	infraredis "elsa-quiz-room/internal/infra/redis"
	transport "elsa-quiz-room/internal/transport/http"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stdout, cfg.Server)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	checks := map[string]transport.Checker{}

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		checks["redis"] = transport.CheckFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		logger.Info("using redis", "addr", cfg.Redis.Addr)
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 6*time.Hour)

	// --- Postgres ---
	var loader memory.QuizLoader = memory.NewExampleQuizLoader()
	var archive *postgres.ResultArchive
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		library := postgres.NewQuizLoader(pool)
		loader = library
		checks["postgres"] = transport.CheckFunc(library.Ping)

		db := postgres.OpenDB(cfg.Postgres.URL)
		defer db.Close()
		archive = postgres.NewResultArchive(db)
		checks["results"] = transport.CheckFunc(archive.Ping)
		logger.Info("using postgres quiz library and results archive")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var rooms app.RoomRepository = memory.NewRoomStore()
	var roomStore *infraredis.RoomStore
	if redisClient != nil {
		roomStore = infraredis.NewRoomStore(redisClient, redisTTL, instanceID(), logger)
		defer roomStore.Drain()
		rooms = roomStore
	}

	hub := transport.NewHub(cfg.Room.SendBuffer, logger)
	opts := []app.Option{
		app.WithQuizRepository(quizRepo),
		app.WithRevealDelay(config.TTLDuration(cfg.Room.RevealDelay, app.DefaultRevealDelay)),
		app.WithLogger(logger),
	}
	var history transport.ResultHistory
	if archive != nil {
		opts = append(opts, app.WithResultSink(archive))
		history = archive
	}
	orch := app.NewOrchestrator(app.NewRoomRegistry(rooms, app.RandomCode(cfg.Room.CodeLength)), hub, opts...)

	router := transport.NewRouter(logger, transport.Routes{
		WS:     transport.NewWSHandler(orch, hub, logger),
		API:    transport.NewAPIHandler(logger, orch, quizRepo, history),
		Health: transport.NewHealthHandler(logger, checks),
	})
	srv := transport.NewServer(":"+finalPort, logger, router)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting quiz room server", "addr", ":"+finalPort)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		return srv.Shutdown(context.Background())
	})

	if roomStore != nil && redisTTL > 0 {
		g.Go(func() error {
			return roomStore.KeepAlive(gctx, redisTTL/3)
		})
	}

	return g.Wait()
}

// instanceID tags room code reservations with the process that holds them.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "quiz-room"
	}
	return host + "-" + uuid.NewString()[:8]
}
