package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"rallybot/internal/config"
	"rallybot/internal/database"
	"rallybot/internal/discord"
	"rallybot/internal/repositories"
	"rallybot/internal/services"
)

// syncTimeout bounds one full refresh pass end to end.
const syncTimeout = 10 * time.Minute

// syncRunner serializes every entry path to a refresh pass. Scheduled and
// manual triggers share the same lock, so at most one pass is in flight
// process-wide.
type syncRunner struct {
	mu  sync.Mutex
	run func()
}

// TryRun runs the pass synchronously, or reports false if one is already
// in flight.
func (s *syncRunner) TryRun() bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	s.run()
	return true
}

// TryRunAsync starts the pass in the background, or reports false if one
// is already in flight.
func (s *syncRunner) TryRunAsync() bool {
	if !s.mu.TryLock() {
		return false
	}
	go func() {
		defer s.mu.Unlock()
		s.run()
	}()
	return true
}

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize external clients
	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	discordClient, err := discord.New(cfg.DiscordToken, cfg.GuildID)
	if err != nil {
		log.Fatalf("Failed to connect to discord: %v", err)
	}
	defer discordClient.Close()

	// Wire services
	repo := repositories.NewRedisEventRepository(redisClient)
	classifier := services.NewClassifier(cfg.AIEndpoint, cfg.AISecret)
	normalizer := services.NewNormalizer(repo, classifier, cfg.FeedURL)
	notifier := services.NewNotifier(discordClient, repo, discordClient, classifier,
		cfg.InPersonMention, cfg.OnlineMention, cfg.Muted, cfg.Timezone)
	reconciler := services.NewReconciler(repo, discordClient, normalizer, notifier)

	syncer := &syncRunner{run: func() {
		syncCtx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := reconciler.SyncAll(syncCtx); err != nil {
			log.Printf("Sync pass failed: %v", err)
		}
	}}
	runSync := func() {
		if !syncer.TryRun() {
			log.Println("sync already in progress, skipping")
		}
	}
	runRemind := func() {
		remindCtx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := notifier.Remind(remindCtx); err != nil {
			log.Printf("Reminder sweep failed: %v", err)
		}
	}

	// Run a full sync once at startup
	runSync()

	// Schedule the daily refresh and hourly reminder sweep. SkipIfStillRunning
	// keeps each trigger to at most one in-flight instance.
	scheduler := cron.New(
		cron.WithLocation(cfg.Timezone),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := scheduler.AddFunc("30 12 * * *", runSync); err != nil {
		log.Fatalf("Failed to schedule sync job: %v", err)
	}
	if _, err := scheduler.AddFunc("0 * * * *", runRemind); err != nil {
		log.Fatalf("Failed to schedule reminder job: %v", err)
	}
	scheduler.Start()
	log.Println("Successfully scheduled jobs")

	// Ops HTTP surface
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Manual out-of-band sync; shares the run lock with the scheduled
	// refresh, so it is refused while any pass is already running.
	router.Post("/sync", func(w http.ResponseWriter, r *http.Request) {
		if !syncer.TryRunAsync() {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte("sync already in progress"))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("sync started"))
	})

	// Start Server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		scheduler.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
