package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	appConfig "github.com/Adika-Junior/messaging-api/config"
	"github.com/Adika-Junior/messaging-api/controllers"
	"github.com/Adika-Junior/messaging-api/middleware"
	"github.com/Adika-Junior/messaging-api/models"
	"github.com/Adika-Junior/messaging-api/services"
)

func main() {
	log.Println("Starting Messaging API server...")

	// Load configuration from environment
	cfg, err := appConfig.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := appConfig.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := appConfig.GetDB()
	if err := db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
		&models.MessageHistory{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	// Initialize S3 for attachments when a bucket is configured. The API
	// runs without attachment support otherwise.
	if cfg.AWSS3Bucket != "" {
		if _, err := services.InitS3Service(); err != nil {
			log.Printf("Failed to initialize S3 service, attachments disabled: %v", err)
		} else {
			log.Println("S3 attachment service initialized")
		}
	} else {
		log.Println("No S3 bucket configured, attachments disabled")
	}

	router := setupRouter(cfg)

	// Start server
	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter builds the Gin engine with all middleware and routes attached
func setupRouter(cfg *appConfig.Config) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RequestLogger())

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)
	}

	responseCache := middleware.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	sendLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	// Authenticated API routes
	api := router.Group("/api")
	api.Use(middleware.EnsureValidToken(cfg))
	{
		users := api.Group("/users")
		{
			users.POST("", controllers.CreateUser)
			users.GET("/me", controllers.GetMyProfile)
			users.PUT("/me", controllers.UpdateMyProfile)
		}

		messaging := api.Group("/messaging")
		{
			messaging.GET("/messages", responseCache.Middleware(), controllers.ListMessages)
			messaging.POST("/messages", sendLimiter.Middleware(), controllers.SendMessage)
			messaging.GET("/messages/unread", controllers.UnreadMessages)
			messaging.GET("/messages/:id/history", controllers.ListMessageHistory)
			messaging.PUT("/messages/:id", controllers.EditMessage)
			messaging.POST("/messages/:id/read", controllers.MarkMessageRead)
			messaging.POST("/delete-user", controllers.DeleteMyAccount)
		}

		conversations := api.Group("/conversations")
		{
			conversations.GET("", controllers.ListConversations)
			conversations.POST("", controllers.CreateConversation)
			conversations.POST("/:id/participants", controllers.AddParticipant)
			conversations.GET("/:id/messages", responseCache.Middleware(), controllers.ListConversationMessages)
			conversations.POST("/:id/messages", sendLimiter.Middleware(), controllers.SendConversationMessage)
		}

		api.POST("/attachments", controllers.UploadAttachment)
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Messaging API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := appConfig.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables
	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
