package main

import (
	"log"
	"net/http"
	"os"

	"shopaudit-backend/internal/database"
	"shopaudit-backend/internal/detection"
	"shopaudit-backend/internal/handlers"
	"shopaudit-backend/internal/middleware"
	"shopaudit-backend/internal/services"
	"shopaudit-backend/internal/visits"
	"shopaudit-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 SHOPAUDIT BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env file
	log.Println("📂 Loading environment variables...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Println("❌ FATAL ERROR: DATABASE_URL environment variable is required")
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Connect to database
	db, err := database.Connect(dbURL)
	if err != nil {
		log.Println("❌ FATAL ERROR: Database connection failed")
		log.Println("   This is usually caused by:")
		log.Println("   1. Wrong DATABASE_URL format")
		log.Println("   2. PostgreSQL service is down")
		log.Println("   3. Network connectivity issue")
		log.Fatal(err)
	}
	defer db.Close()

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Println("❌ FATAL ERROR: Database migrations failed")
		log.Fatal(err)
	}

	// Seed bootstrap admin
	if err := database.SeedAdminUser(db); err != nil {
		log.Println("❌ FATAL ERROR: Admin seeding failed")
		log.Fatal(err)
	}

	// Initialize Firebase Cloud Messaging
	// Supports both file path and base64-encoded credentials (for Railway/cloud deployments)
	var fcmService *services.FCMService
	fcmCredsBase64 := os.Getenv("FIREBASE_CREDENTIALS_BASE64")

	if fcmCredsBase64 != "" {
		fcmService, err = services.NewFCMServiceFromBase64(fcmCredsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	} else {
		fcmCredentialsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE")
		if fcmCredentialsFile == "" {
			fcmCredentialsFile = "./firebase-service-account.json"
		}

		fcmService, err = services.NewFCMService(fcmCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	}

	// Geocoding fallback for shops registered without coordinates
	geocoder, err := services.NewGeocodingService()
	if err != nil {
		log.Printf("⚠️  Geocoding disabled: %v", err)
		geocoder = nil
	} else {
		log.Println("✅ Geocoding service initialized")
	}

	// Shelf-image product detection
	var detector visits.Detector
	visionClient, err := detection.NewVisionClient()
	if err != nil {
		log.Printf("⚠️  Vision API not configured: %v (detection degrades to none)", err)
		detector = detection.NewServiceFromEnv(nil)
	} else {
		detector = detection.NewServiceFromEnv(visionClient)
		log.Println("✅ Vision detection service initialized")
	}

	// Optional Redis cache for dashboard stats
	statsCache := services.NewStatsCache(services.OpenRedisFromEnv())

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	// Visit lifecycle service
	visitStore := database.NewVisitStore(db)
	visitService := visits.NewService(visitStore, detector, wsHub)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Evidence images
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))

	// Authentication routes (no auth required)
	r.Post("/api/auth/login", handlers.Login(db))
	r.Post("/api/auth/admin-create", handlers.AdminCreate(db))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth)

		// User management
		r.Post("/users", handlers.RegisterUser(db))
		r.Get("/users", handlers.GetAllUsers(db))
		r.Get("/users/assignees", handlers.GetAssignees(db))
		r.Get("/users/salespersons", handlers.GetSalespersons(db))
		r.Put("/users/{id}", handlers.UpdateUser(db))
		r.Get("/users/{id}/shops", handlers.GetShopsForUser(db))

		// Device push tokens
		r.Post("/fcm-token", handlers.RegisterFCMToken(db))

		// Shops
		r.Get("/shops", handlers.GetShops(db))
		r.Get("/shops/visited", handlers.GetVisitedShops(db))
		r.Get("/shops/pending-and-visited", handlers.GetPendingAndVisitedShops(db))
		r.Get("/shops/{id}", handlers.GetShopByID(db))
		r.Get("/shops/{id}/detections", handlers.GetDetectionResults(db))
		r.Put("/shops/{id}/found", handlers.MarkShopFound(db))

		// Shop administration
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", "manager", "supervisor"))
			r.Post("/shops/upload", handlers.UploadShops(db))
			r.Post("/shops", handlers.AddShop(db, geocoder))
			r.Post("/shops/assign", handlers.AssignShops(db, fcmService))
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("qc", "saleperson"))
			r.Put("/shops/{id}", handlers.UpdateShop(db))
		})

		// Visit lifecycle
		r.Post("/visits/start-audit", handlers.StartAudit(visitService))
		r.Post("/visits/photo-click", handlers.PhotoClick(visitService))
		r.Post("/visits/submit", handlers.SubmitVisit(visitService, statsCache))
		r.Get("/visits/stats", handlers.GetVisitStats(db, statsCache))
		r.Get("/visits/gps-summary", handlers.GPSSummary(db))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin"))
			r.Delete("/visits/reset", handlers.ResetVisits(visitService, statsCache))
		})
	})

	// Get port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		log.Printf("⚠️  PORT not set, using default: %s", port)
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", port)
	log.Println("🔌 Ready to accept requests!")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Start server
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Println("❌ FATAL ERROR: Server failed to start")
		log.Printf("   Port: %s", port)
		log.Fatal(err)
	}
}
