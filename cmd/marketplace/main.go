package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ticket-marketplace/internal/auth"
	"ticket-marketplace/internal/bookings"
	booking_api "ticket-marketplace/internal/bookings/api"
	booking_db "ticket-marketplace/internal/bookings/db"
	"ticket-marketplace/internal/config"
	"ticket-marketplace/internal/database/migrations"
	"ticket-marketplace/internal/kafka"
	"ticket-marketplace/internal/logger"
	"ticket-marketplace/internal/models"
	"ticket-marketplace/internal/monitoring"
	"ticket-marketplace/internal/payment"
	"ticket-marketplace/internal/tickets"
	ticket_api "ticket-marketplace/internal/tickets/api"
	ticket_db "ticket-marketplace/internal/tickets/db"
	adslots "ticket-marketplace/internal/tickets/redis"
	"ticket-marketplace/internal/users"
	user_api "ticket-marketplace/internal/users/api"
	user_db "ticket-marketplace/internal/users/db"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN())
		if err == nil {
			err = sqldb.Ping()
			if err == nil {
				break
			}
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Ticket Marketplace initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.MigrateUp(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	if version, _, err := runner.Version(); err == nil {
		log.Info("DATABASE", fmt.Sprintf("Schema at version %d", version))
	}

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		log.Info("KAFKA", "Kafka producer initialized successfully")

		requiredTopics := []string{
			cfg.Kafka.Topics.TicketLifecycle,
			cfg.Kafka.Topics.BookingLifecycle,
			cfg.Kafka.Topics.UserLifecycle,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, lifecycle events will not be published")
	}

	payment.InitStripe(cfg.Stripe.SecretKey)

	ticketStore := &ticket_db.DB{Bun: bunDB}
	bookingStore := &booking_db.DB{Bun: bunDB}
	userStore := &user_db.DB{Bun: bunDB}

	slots := adslots.NewAdSlots(redisClient, tickets.MaxAdvertised)
	advertised, err := ticketStore.CountAdvertised(ctx)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to count advertised tickets: %v", err))
	}
	if err := slots.Sync(ctx, advertised); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to seed advertisement slots: %v", err))
	}
	monitoring.SetAdvertisedSlots(advertised)
	log.Info("APP", fmt.Sprintf("Advertisement slots seeded: %d in use", advertised))

	userService := users.NewUserService(userStore, producer, log, cfg.Kafka.Topics.UserLifecycle)
	ticketService := tickets.NewTicketService(ticketStore, slots, producer, userService, log, cfg.Kafka.Topics.TicketLifecycle)
	bookingService := bookings.NewBookingService(
		bookingStore,
		ticketStore,
		userService,
		producer,
		payment.NewStripeProcessor(log),
		bookings.NewReceiptGenerator(cfg.Stripe.SecretKey),
		log,
		cfg.Kafka.Topics.BookingLifecycle,
	)

	ticketHandler := &ticket_api.Handler{TicketService: ticketService, Logger: log}
	bookingHandler := &booking_api.Handler{BookingService: bookingService, Logger: log}
	userHandler := &user_api.Handler{UserService: userService, Logger: log}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(monitoring.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// --- Public Routes ---
	r.Route("/api/v1/tickets", func(r chi.Router) {
		r.Get("/", ticketHandler.Browse)
		r.Get("/featured", ticketHandler.Featured)
		r.Get("/{ticketId}", ticketHandler.GetTicket)
	})
	log.Info("ROUTER", "Public ticket routes registered under /api/v1/tickets")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer, log))
		r.Use(auth.WithActor(userService))
		log.Info("AUTH", "OIDC middleware applied to protected API routes")

		r.Get("/api/v1/me", userHandler.Me)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleUser))

			r.Route("/api/v1/bookings", func(r chi.Router) {
				r.Post("/", bookingHandler.CreateBooking)
				r.Get("/", bookingHandler.MyBookings)
				r.Post("/{bookingId}/pay", bookingHandler.PayBooking)
			})
			r.Get("/api/v1/transactions", bookingHandler.Transactions)
		})
		log.Info("ROUTER", "User routes registered under /api/v1/bookings")

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleVendor))

			r.Route("/api/v1/vendor", func(r chi.Router) {
				r.Get("/tickets", ticketHandler.VendorTickets)
				r.Post("/tickets", ticketHandler.CreateTicket)
				r.Put("/tickets/{ticketId}", ticketHandler.UpdateTicket)
				r.Delete("/tickets/{ticketId}", ticketHandler.DeleteTicket)
				r.Get("/tickets/{ticketId}/bookings", bookingHandler.TicketBookings)

				r.Get("/bookings", bookingHandler.VendorBookings)
				r.Post("/bookings/{bookingId}/accept", bookingHandler.AcceptBooking)
				r.Post("/bookings/{bookingId}/reject", bookingHandler.RejectBooking)

				r.Get("/revenue", bookingHandler.VendorRevenue)
			})
		})
		log.Info("ROUTER", "Vendor routes registered under /api/v1/vendor")

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))

			r.Route("/api/v1/admin", func(r chi.Router) {
				r.Get("/users", userHandler.ListUsers)
				r.Post("/users/{userId}/make-vendor", userHandler.MakeVendor)
				r.Post("/users/{userId}/make-admin", userHandler.MakeAdmin)
				r.Post("/users/{userId}/mark-fraud", userHandler.MarkFraud)

				r.Get("/tickets", ticketHandler.AdminTickets)
				r.Get("/tickets/pending", ticketHandler.PendingTickets)
				r.Post("/tickets/{ticketId}/approve", ticketHandler.ApproveTicket)
				r.Post("/tickets/{ticketId}/reject", ticketHandler.RejectTicket)
				r.Post("/tickets/{ticketId}/advertise", ticketHandler.AdvertiseTicket)
				r.Post("/tickets/{ticketId}/unadvertise", ticketHandler.UnadvertiseTicket)
			})
		})
		log.Info("ROUTER", "Admin routes registered under /api/v1/admin")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Ticket Marketplace running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Ticket Marketplace shutdown complete")
	}
}
