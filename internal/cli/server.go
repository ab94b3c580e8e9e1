package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizcast/internal/app"
	"quizcast/internal/config"
	"quizcast/internal/domain"
	"quizcast/internal/guard"
	"quizcast/internal/infra/memory"
	pgloader "quizcast/internal/infra/postgres"
	rediscache "quizcast/internal/infra/redis"
	transport "quizcast/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quizcast server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
	}

	catalogTTL := config.Duration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog app.QuizCatalog
	if redisClient != nil {
		catalog = rediscache.NewQuizCatalog(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewQuizCatalog(loader, catalogTTL)
	}

	var index app.RoomIndex = memory.NewRoomIndex()
	if redisClient != nil {
		indexTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)
		index = rediscache.NewRoomIndex(redisClient, indexTTL)
	}

	connGuard := guard.New(guard.Config{
		MaxConnections:     cfg.Guard.MaxConnections,
		MaxPerAddress:      cfg.Guard.MaxPerAddress,
		RateWindow:         config.Duration(cfg.Guard.RateWindow, 0),
		MaxEventsPerWindow: cfg.Guard.MaxEventsPerWindow,
	})
	go connGuard.Run(ctx, config.Duration(cfg.Guard.SweepInterval, time.Minute))

	hub := transport.NewHub()
	games := app.NewGameManager(hub, catalog, index)
	polls := app.NewPollManager(hub, index)
	broadcasts := app.NewBroadcastManager(hub, config.Duration(cfg.Broadcast.GraceDelay, app.DefaultGraceDelay))
	wsHandler := transport.NewWSHandler(hub, connGuard, games, polls, broadcasts)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizcast on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	log.Printf("final stats: %d connections, %d game rooms, %d poll rooms",
		connGuard.Active(), games.RoomCount(), polls.RoomCount())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a minimal catalog so the server runs without
// Postgres; swap in the database-backed loader for real deployments.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warmup",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Text:          "What is 2 + 2?",
					Options:       []string{"3", "4", "5", "6"},
					CorrectAnswer: 1,
					TimeLimit:     15,
				},
			},
		},
	}
}
