package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/flowapp/flow-server/pkg/flow/analytics"
	"github.com/flowapp/flow-server/pkg/flow/auth"
	"github.com/flowapp/flow-server/pkg/flow/database"
	"github.com/flowapp/flow-server/pkg/flow/importexport"
	"github.com/flowapp/flow-server/pkg/flow/models"
	"github.com/flowapp/flow-server/pkg/flow/notes"
	"github.com/flowapp/flow-server/pkg/flow/posts"
	"github.com/flowapp/flow-server/pkg/flow/tags"
	"github.com/flowapp/flow-server/pkg/flow/tasks"
)

// @title Flow API
// @version 1.0
// @description Personal productivity backend: tasks, notes, posts with shared tagging, activity log, and analytics.

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}

	dbPath := os.Getenv("FLOW_DB_PATH")
	if dbPath == "" {
		dbPath = "flow.db"
	}

	if err := database.Connect(dbPath); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(database.GetDB()); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}
	logrus.Info("Database migrations completed")

	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "flow",
			})
		})

		db := database.GetDB()

		// Auth and profile routes (register/login public, rest behind middleware)
		authHandler := auth.NewHandler(db)
		authHandler.RegisterRoutes(api)

		protected := api.Group("", auth.AuthMiddleware())

		tagsHandler := tags.NewHandler(db)
		tagsHandler.RegisterRoutes(protected)

		tasksHandler := tasks.NewHandler(db)
		tasksHandler.RegisterRoutes(protected)

		notesHandler := notes.NewHandler(db)
		notesHandler.RegisterRoutes(protected)

		postsHandler := posts.NewHandler(db)
		postsHandler.RegisterRoutes(protected)

		analyticsHandler := analytics.NewHandler(db)
		analyticsHandler.RegisterRoutes(protected)

		exportHandler := importexport.NewHandler(db)
		exportHandler.RegisterRoutes(protected)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logrus.Infof("Starting Flow server on :%s", port)
	if err := r.Run(":" + port); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}
