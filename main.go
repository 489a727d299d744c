package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meetupStreakAPI/handlers"
	"meetupStreakAPI/internal/cache"
	"meetupStreakAPI/internal/config"
	"meetupStreakAPI/internal/database"
	"meetupStreakAPI/internal/memstore"
	"meetupStreakAPI/internal/notification"
	"meetupStreakAPI/internal/queue"
	"meetupStreakAPI/internal/store"
	"meetupStreakAPI/middleware"
	"meetupStreakAPI/services"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	loc, _ := cfg.Location()
	weekStart, _ := cfg.FirstWeekday()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.ClerkSecretKey != "" {
		clerk.SetKey(cfg.ClerkSecretKey)
		log.Println("Clerk initialized successfully")
	}
	if cfg.DevAuthSecret != "" {
		log.Println("Warning: development HS256 tokens are accepted")
	}

	var backend store.Backend
	switch cfg.Store {
	case config.StorePostgres:
		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
		connectCancel()
		if err != nil {
			log.Fatal("Failed to connect to database: ", err)
		}
		log.Println("Successfully connected to Postgres")
		backend = services.NewPostgresStore(pool)
	default:
		log.Println("Using in-memory store; data is lost on restart")
		backend = memstore.New()
	}
	defer func() {
		log.Println("Closing store...")
		backend.Close()
	}()

	var gridCache cache.Cache = cache.Nop{}
	var queueClient queue.Client
	var queueServer *queue.AsynqServer
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Fatal("Failed to connect to Redis: ", err)
		}
		gridCache = redisCache
		defer redisCache.Close()

		client, err := queue.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			log.Fatal("Failed to create task client: ", err)
		}
		queueClient = client
		defer client.Close()

		queueServer, err = queue.NewAsynqServer(cfg.RedisURL, 5, "streaks=6,default=1")
		if err != nil {
			log.Fatal("Failed to create task server: ", err)
		}
		log.Println("Redis cache and task queue initialized")
	}

	services.RegisterMetrics()
	middleware.InitPrometheus()

	dispatcher := services.NewDispatcher(5, 100)
	notificationService := services.NewNotificationService(backend, dispatcher)
	fcmService, err := notification.NewFCMService(ctx, cfg.FCMCredentialsFile, backend)
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	userService := services.NewUserService(backend)
	streakService := services.NewStreakService(backend, nil, notificationService)
	if queueClient != nil {
		streakService.SetQueue(queueClient)
	}
	meetupService := services.NewMeetupService(backend, streakService, notificationService, loc)
	calendarService := services.NewCalendarService(backend, gridCache, services.CalendarOptions{
		Location:      loc,
		WeekStart:     weekStart,
		FromHour:      cfg.GridFromHour,
		ToHour:        cfg.GridToHour,
		ImportHorizon: time.Duration(cfg.ImportHorizonDays) * 24 * time.Hour,
	})

	if err := dispatcher.Schedule(cfg.TargetSweepCron, "evaluate_targets", streakService.EvaluateAll); err != nil {
		log.Fatal("Invalid target sweep schedule: ", err)
	}
	if err := dispatcher.Schedule(cfg.RecheckSweepCron, "sweep_uncounted", func(ctx context.Context) error {
		n, err := streakService.SweepUncounted(ctx)
		if n > 0 {
			log.Printf("Swept %d uncounted meetups", n)
		}
		return err
	}); err != nil {
		log.Fatal("Invalid recheck sweep schedule: ", err)
	}
	dispatcher.Start()
	defer dispatcher.Stop()

	if queueServer != nil {
		queueServer.Register(services.TaskStreakRecheck, streakService.HandleRecheckTask)
		go func() {
			if err := queueServer.Run(ctx); err != nil {
				log.Printf("Task server stopped: %v", err)
			}
		}()
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go rateLimiter.CleanupVisitors(ctx)

	auth := middleware.NewAuthenticator(userService, cfg.ClerkSecretKey != "", cfg.DevAuthSecret)

	healthDeps := map[string]handlers.Pinger{"database": backend}
	if cfg.RedisURL != "" {
		healthDeps["redis"] = gridCache
	}

	r := mux.NewRouter()
	r.Use(rateLimiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))
	r.HandleFunc("/health", handlers.NewHealthHandler(healthDeps).Health).Methods("GET")

	if cfg.ClerkWebhookSecret != "" {
		webhookHandler, err := handlers.NewWebhookHandler(userService, cfg.ClerkWebhookSecret)
		if err != nil {
			log.Fatal("Failed to configure Clerk webhook: ", err)
		}
		r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	handlers.RegisterRoutes(api, auth.Middleware, handlers.Handlers{
		Calendar:     handlers.NewCalendarHandler(calendarService, loc),
		Meetup:       handlers.NewMeetupHandler(meetupService),
		Streak:       handlers.NewStreakHandler(streakService),
		Notification: handlers.NewNotificationHandler(notificationService),
	})

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length", "Content-Disposition"}),
	)

	port := ":" + cfg.Port
	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	cancel()

	log.Println("Server shutdown complete")
}
