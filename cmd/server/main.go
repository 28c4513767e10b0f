package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shiva/swiftparcel/config"
	"github.com/shiva/swiftparcel/internal/auth"
	"github.com/shiva/swiftparcel/internal/handler"
	"github.com/shiva/swiftparcel/internal/middleware"
	"github.com/shiva/swiftparcel/internal/repository"
	"github.com/shiva/swiftparcel/internal/service"
	"github.com/shiva/swiftparcel/internal/session"
	"github.com/shiva/swiftparcel/pkg/cache"
	"github.com/shiva/swiftparcel/pkg/db"
	"github.com/shiva/swiftparcel/pkg/maps"
	"github.com/shiva/swiftparcel/pkg/push"
)

func main() {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer pgPool.Close()
	log.Println("✓ PostgreSQL connected")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ── Initialize layers ───────────────────────────────
	userRepo := repository.NewUserRepository(pgPool)
	bookingRepo := repository.NewBookingRepository(pgPool)
	slotRepo := repository.NewSlotRepository(pgPool)
	locationRepo := repository.NewLocationRepository(pgPool)
	rejectionRepo := repository.NewRejectionRepository(pgPool)
	messageRepo := repository.NewMessageRepository(pgPool)

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)
	hub := session.NewHub()

	var pusher push.Sender = push.NopSender{}
	if endpoint := os.Getenv("PUSH_GATEWAY_URL"); endpoint != "" {
		pusher = push.NewHTTPSender(endpoint, os.Getenv("PUSH_GATEWAY_KEY"))
	}

	var distance maps.DistanceProvider
	if base := os.Getenv("MAPS_BASE_URL"); base != "" {
		distance = maps.NewHTTPProvider(base, os.Getenv("MAPS_API_KEY"))
		log.Printf("[main] ✓ map distance provider wired (%s)", base)
	} else {
		log.Printf("[main] no MAPS_BASE_URL; distances fall back to haversine")
	}

	areaSvc := service.NewServiceAreaService(cfg.ServiceArea)
	fareSvc := service.NewFareService(cfg.Fare, distance)
	lockSvc := service.NewLockService(redisClient, bookingRepo, cfg.Booking.LockTTL)
	presenceSvc := service.NewPresenceService(redisClient, 0)
	verificationSvc := service.NewVerificationService(userRepo, messageRepo, hub)
	slotSvc := service.NewSlotService(slotRepo, cfg.Booking.SlotGenGuard)
	dispatchSvc := service.NewDispatchService(cfg.Dispatch, userRepo, rejectionRepo, hub, pusher)
	bookingSvc := service.NewBookingService(cfg.Booking, bookingRepo, userRepo, locationRepo, lockSvc, fareSvc, areaSvc, hub)

	sessionSrv := session.NewServer(hub, verifier, userRepo, bookingRepo, locationRepo, messageRepo,
		areaSvc, bookingSvc, dispatchSvc, presenceSvc)

	bookingHandler := handler.NewBookingHandler(bookingSvc, dispatchSvc)
	driverHandler := handler.NewDriverHandler(userRepo, bookingRepo, locationRepo, verificationSvc, areaSvc, hub)
	slotHandler := handler.NewSlotHandler(slotSvc)
	adminHandler := handler.NewAdminHandler(userRepo, bookingRepo, verificationSvc, bookingSvc, hub)
	areaHandler := handler.NewServiceAreaHandler(areaSvc)
	fareHandler := handler.NewFareHandler(fareSvc, areaSvc)

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()

	// Health check endpoint.
	router.HandleFunc("/health", healthHandler(pgPool, redisClient)).Methods(http.MethodGet)

	// Session plane (token via query parameter; websocket clients cannot
	// always set headers).
	router.Handle("/ws", sessionSrv)

	authMW := middleware.Auth(verifier)
	generalLimit := middleware.RateLimit(cfg.RateLimit.GeneralPer15Min, 15*time.Minute)
	bookingLimit := middleware.RateLimit(cfg.RateLimit.BookingPerHour, time.Hour)
	uploadLimit := middleware.RateLimit(cfg.RateLimit.UploadPerHour, time.Hour)

	// API v1 routes.
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW, generalLimit)

	// Service area and fares (any authenticated caller).
	api.HandleFunc("/service-area", areaHandler.Info).Methods(http.MethodGet)
	api.HandleFunc("/service-area/check", areaHandler.Check).Methods(http.MethodGet)
	api.HandleFunc("/service-area/route", areaHandler.CheckRoute).Methods(http.MethodPost)
	api.HandleFunc("/fare/quote", fareHandler.Quote).Methods(http.MethodPost)

	// Bookings.
	api.Handle("/bookings", bookingLimit(http.HandlerFunc(bookingHandler.Create))).Methods(http.MethodPost)
	api.HandleFunc("/bookings", bookingHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", bookingHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/accept", bookingHandler.Accept).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/reject", bookingHandler.Reject).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/status", bookingHandler.UpdateStatus).Methods(http.MethodPatch)
	api.HandleFunc("/bookings/{id}/cancel", bookingHandler.Cancel).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/rating", bookingHandler.Rate).Methods(http.MethodPost)

	// Driver surface.
	api.HandleFunc("/drivers/me", driverHandler.Profile).Methods(http.MethodGet)
	api.HandleFunc("/drivers/me/status", driverHandler.SetStatus).Methods(http.MethodPut)
	api.HandleFunc("/drivers/me/location", driverHandler.SetLocation).Methods(http.MethodPut)
	api.Handle("/drivers/me/documents", uploadLimit(http.HandlerFunc(driverHandler.SubmitDocument))).Methods(http.MethodPost)
	api.HandleFunc("/drivers/me/device", driverHandler.RegisterDevice).Methods(http.MethodPut)
	api.HandleFunc("/drivers/me/verification", driverHandler.VerificationStatus).Methods(http.MethodGet)
	api.HandleFunc("/drivers/me/trip", driverHandler.ActiveTrip).Methods(http.MethodGet)

	// Work slots.
	api.HandleFunc("/slots", slotHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/slots/generate", slotHandler.Generate).Methods(http.MethodPost)
	api.HandleFunc("/slots/select", slotHandler.SelectBatch).Methods(http.MethodPatch)
	api.HandleFunc("/slots/{id}/select", slotHandler.Select).Methods(http.MethodPatch)
	api.HandleFunc("/slots/{id}/book", slotHandler.Book).Methods(http.MethodPost)

	// Admin surface.
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/drivers/pending", adminHandler.PendingDrivers).Methods(http.MethodGet)
	admin.HandleFunc("/drivers/{id}/verification", adminHandler.DriverVerification).Methods(http.MethodGet)
	admin.HandleFunc("/drivers/{id}/documents/{kind}/review", adminHandler.ReviewDocument).Methods(http.MethodPost)
	admin.HandleFunc("/drivers/{id}/approve", adminHandler.ApproveDriver).Methods(http.MethodPost)
	admin.HandleFunc("/bookings/pending", adminHandler.PendingBookings).Methods(http.MethodGet)
	admin.HandleFunc("/bookings/{id}/assign", adminHandler.AssignBooking).Methods(http.MethodPost)
	admin.HandleFunc("/bookings/{id}/trail", adminHandler.BookingTrail).Methods(http.MethodGet)
	admin.HandleFunc("/bookings/{id}/candidates", bookingHandler.Candidates).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", adminHandler.DeactivateUser).Methods(http.MethodDelete)

	// Wrap with the outer chain.
	root := middleware.RequestLogger(middleware.Recoverer(middleware.CORS(router)))

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in a goroutine so we can listen for shutdown signals.
	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("⏳ Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG and Redis connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
