package main

import (
	"encoding/hex"
	"log"
	"os"
	"time"
	"trivia-service/internal/db"
	"trivia-service/internal/event"
	"trivia-service/internal/handlers"
	"trivia-service/internal/pool"
	"trivia-service/internal/repository"
	"trivia-service/internal/service"
	"trivia-service/internal/token"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		log.Fatal("MONGO_URI is required")
	}
	db.InitMongo(mongoURI)
	defer db.Disconnect()

	secretHex := os.Getenv("TOKEN_SECRET")
	if secretHex == "" {
		log.Fatal("TOKEN_SECRET is required")
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		log.Fatalf("TOKEN_SECRET must be hex encoded: %v", err)
	}
	codec, err := token.NewCodec(secret, token.DefaultTTL)
	if err != nil {
		log.Fatalf("Failed to build token codec: %v", err)
	}

	// RabbitMQ event publisher
	rabbitURL := os.Getenv("RABBITMQ_URI")
	eventExchange := os.Getenv("RABBITMQ_EXCHANGE")
	var publisher *event.EventPublisher
	if rabbitURL != "" && eventExchange != "" {
		publisher, err = event.NewEventPublisher(rabbitURL, eventExchange)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
	} else {
		log.Println("RabbitMQ not configured, game events will not be published")
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	database := db.Client.Database("trivia_service")

	questionRepo := repository.NewQuestionRepository(database)
	categoryRepo := repository.NewCategoryRepository(database)
	gameRepo := repository.NewGameRepository(database)

	sampler := pool.NewAccessor(questionRepo)

	questionService := service.NewQuestionService(questionRepo, categoryRepo)
	categoryService := service.NewCategoryService(categoryRepo)
	gameService := service.NewGameService(gameRepo, questionRepo, sampler, codec)

	questionHandler := handlers.NewQuestionHandler(questionService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	gameHandler := handlers.NewGameHandler(gameService)

	games := r.Group("/games")
	{
		games.GET("/new/:difficulty", func(c *gin.Context) {
			gameHandler.StartGame(c)
			if publisher != nil {
				publisher.Publish("game.started", gin.H{
					"difficulty": c.Param("difficulty"),
					"timestamp":  time.Now(),
				})
			}
		})
		games.POST("/", func(c *gin.Context) {
			gameHandler.SubmitGame(c)
			if publisher != nil {
				publisher.Publish("game.finished", gin.H{
					"timestamp": time.Now(),
				})
			}
		})
		games.GET("/top", gameHandler.Top)
		games.GET("/", gameHandler.ListGames)
		games.GET("/:id", gameHandler.GetGame)
	}

	questions := r.Group("/questions")
	{
		questions.POST("/", func(c *gin.Context) {
			questionHandler.CreateQuestion(c)
			if publisher != nil {
				publisher.Publish("question.created", gin.H{
					"added_by":  c.GetHeader("X-User-ID"),
					"timestamp": time.Now(),
				})
			}
		})
		questions.GET("/", questionHandler.ListQuestions)
		questions.GET("/pending", questionHandler.ListPending)
		questions.GET("/pending/count", questionHandler.PendingCount)
		questions.GET("/stats", questionHandler.Stats)
		questions.GET("/:id", questionHandler.GetQuestion)
		questions.PUT("/:id", questionHandler.UpdateQuestion)
		questions.DELETE("/:id", questionHandler.DeleteQuestion)
	}

	categories := r.Group("/category")
	{
		categories.POST("/", categoryHandler.CreateCategory)
		categories.GET("/", categoryHandler.ListCategories)
		categories.GET("/:id", categoryHandler.GetCategory)
		categories.PUT("/:id", categoryHandler.UpdateCategory)
		categories.DELETE("/:id", categoryHandler.DeleteCategory)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
