package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/rihlaapp/rihla-backend/internal/database"
	"github.com/rihlaapp/rihla-backend/internal/handlers"
	"github.com/rihlaapp/rihla-backend/internal/middleware"
	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/services"
	"github.com/rihlaapp/rihla-backend/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize Storage (S3 or local fallback)
	if err := services.InitStorage(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Wire the core services
	st := store.NewGorm(db)
	notifier := services.NewNotifier(hub)
	ledger := services.NewLedger(st)
	coordinator := services.NewBookingCoordinator(st, ledger, notifier)
	driverService := services.NewDriverService(st, coordinator, notifier)
	walletService := services.NewWalletService(st, ledger, notifier)

	// Start the readiness scheduler
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	scheduler := services.NewReadinessScheduler(st, notifier)
	go scheduler.Run(schedulerCtx)

	// Initialize router
	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	// Serve locally stored receipt uploads
	r.Static("/uploads", "/app/uploads")

	adminRole := string(models.UserRoleAdmin)

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
		}

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
			}

			trips := protected.Group("/trips")
			{
				trips.GET("", handlers.GetTrips(db))
				trips.POST("", handlers.CreateTrip(db))
				trips.GET("/driver", handlers.GetDriverTrips(db))
				trips.GET("/:id", handlers.GetTrip(db))
				trips.GET("/:id/bookings", handlers.GetTripBookings(db))
				trips.POST("/:id/cancel", handlers.CancelTrip(coordinator))
				trips.POST("/:id/complete", handlers.CompleteTrip(coordinator))
				trips.POST("/:id/confirm-ready", handlers.ConfirmReady(driverService))
			}

			bookings := protected.Group("/bookings")
			{
				bookings.POST("", handlers.BookSeat(coordinator))
				bookings.GET("", handlers.GetMyBookings(db))
				bookings.GET("/waitlist", handlers.GetMyWaitlist(db))
				bookings.POST("/:id/cancel", handlers.CancelBooking(coordinator))
			}

			wallet := protected.Group("/wallet")
			{
				wallet.GET("", handlers.GetWallet(walletService))
				wallet.POST("/deposits", handlers.RequestDeposit(walletService))
				wallet.GET("/deposits", handlers.GetMyDeposits(db))
				wallet.POST("/receipts", handlers.UploadReceipt())
			}

			driver := protected.Group("/driver")
			{
				driver.GET("/dashboard", handlers.GetDriverDashboard(db))
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", handlers.GetNotifications(db))
				notifications.GET("/unread", handlers.GetUnreadCount(db))
				notifications.POST("/:id/read", handlers.MarkNotificationRead(db))
				notifications.POST("/read-all", handlers.MarkAllNotificationsRead(db))
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(adminRole))
			{
				admin.GET("/stats", handlers.GetDashboardStats(db, hub))
				admin.GET("/alerts", handlers.GetAlerts(db))
				admin.POST("/no-show", handlers.MarkNoShow(driverService))
				admin.GET("/deposits", handlers.GetPendingDeposits(db))
				admin.POST("/deposits/:id/approve", handlers.ApproveDeposit(walletService))
				admin.POST("/deposits/:id/reject", handlers.RejectDeposit(walletService))
				admin.GET("/users", handlers.GetUsers(db))
				admin.POST("/users/:id/ban", handlers.SetUserBan(db))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
