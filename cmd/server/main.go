package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/tattle-publisher/configs"
	"github.com/maheshrc27/tattle-publisher/internal/api/handlers"
	"github.com/maheshrc27/tattle-publisher/internal/api/middleware"
	"github.com/maheshrc27/tattle-publisher/internal/cache"
	job "github.com/maheshrc27/tattle-publisher/internal/jobs"
	"github.com/maheshrc27/tattle-publisher/internal/queue"
	"github.com/maheshrc27/tattle-publisher/internal/repository"
	"github.com/maheshrc27/tattle-publisher/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	switch len(cfg.SecretKey) {
	case 16, 24, 32:
	default:
		log.Fatal("SECRET_KEY must be 16, 24 or 32 bytes long")
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // a trigger may wait out video processing
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	attemptRepo := repository.NewPublishAttemptRepository(db)

	ledger := cache.NewRedisPublishLedger(rdb, cfg.LedgerTTL)
	notifier := queue.NewEmailNotifier(client, accountRepo, cfg.Email.AdminEmail, cfg.Email.DashboardURL)

	instagramService := service.NewInstagramService(*cfg)
	emailService := service.NewEmailService(*cfg)
	accountService := service.NewAccountService(accountRepo, instagramService, cfg.SecretKey)
	postService := service.NewPostService(postRepo, accountRepo, notifier)
	orchestrator := service.NewOrchestrator(instagramService, cfg.Instagram.PollInterval, cfg.Instagram.PollAttempts)
	publishService := service.NewPublishService(postService, accountRepo, attemptRepo, ledger, orchestrator, cfg.SecretKey, cfg.RunTimeout)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	app.Get("/", handlers.Health(db))

	api := app.Group("/api")

	scheduler := handlers.NewSchedulerHandler(publishService)
	api.Post("/scheduler/trigger", authMiddleware.SchedulerAuth(), scheduler.Trigger)

	submissions := handlers.NewSubmissionHandler(postService)
	api.Post("/submissions", submissions.Submit)

	admin := api.Group("/admin")
	admin.Use(authMiddleware.AdminAuth())

	post := handlers.NewPostHandler(postService, attemptRepo, client)
	admin.Get("/posts", post.ListPosts)
	admin.Get("/posts/stats", post.Stats)
	admin.Get("/posts/:id", post.GetPost)
	admin.Get("/posts/:id/attempts", post.ListAttempts)
	admin.Patch("/posts/:id/approve", post.Approve)
	admin.Patch("/posts/:id/decline", post.Decline)
	admin.Post("/posts/:id/publish", post.Publish)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(accountService, job.RefreshWindow)
	reconcileJob := job.NewClaimReconcileJob(publishService, cfg.ClaimTimeout)
	publishJob := job.NewPublishJob(publishService)

	c := cron.New()
	if err := job.Schedule(c, refreshTokenJob, reconcileJob, publishJob, cfg.SchedulerCron); err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}
	c.Start()
	defer c.Stop()

	//queue
	queueW := queue.NewQueue(publishService, emailService)
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
	})

	mux := asynq.NewServeMux()
	queueW.Register(mux)

	log.Println("Starting the Asynq server...")
	if err := server.Start(mux); err != nil {
		log.Fatalf("Could not start Asynq server: %v", err)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, server)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}
	server.Shutdown()

	log.Println("Server shutdown complete.")
}
