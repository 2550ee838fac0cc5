package main

import (
	"context"
	"net/http"
	"os"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quizroyale/auth"
	"quizroyale/config"
	"quizroyale/crypto"
	"quizroyale/game"
	"quizroyale/migrations"
	"quizroyale/questions"
	"quizroyale/storage"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")
		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {
	godotenv.Load()

	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.PostgresUrl == "" {
		log.Fatal().Msg("missing postgres url")
	}
	if cfg.JwtKey == "" {
		log.Fatal().Msg("missing jwt signing key")
	}

	if err := migrations.Migrate(cfg.PostgresUrl); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	pgRepo, err := storage.NewPostgresRepo(context.Background(), cfg.PostgresUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pgRepo.Close()

	listener := storage.NewListener(pgRepo.GetPool())
	go listener.Run(context.Background())

	tokenManager := crypto.NewJWTManager(cfg.JwtKey, cfg.TokenAge)
	authHandler := auth.NewAuthHandler(pgRepo, tokenManager, cfg.TokenAge, game.STARTING_BALANCE)

	questionSource := questions.NewGenerator(cfg.QuestionsApiUrl, cfg.QuestionsApiKey, cfg.QuestionsModel, nil, nil)
	bots := game.NewBotSimulator(nil)
	settler := game.NewSettler(pgRepo, pgRepo)
	directory := game.NewDirectory(pgRepo, pgRepo, pgRepo, game.NewIdGen())

	lobby := game.NewLobby(game.NewTickerGen())
	lobbyStarted := make(chan struct{})
	go lobby.LobbyActor(lobbyStarted)
	<-lobbyStarted

	gameHandler := game.NewGameHandler(directory, lobby, pgRepo, game.RoomDeps{
		Store:   pgRepo,
		Settler: settler,
		Source:  questionSource,
		Bots:    bots,
		Feed:    listener,
	})

	r := CreateServer(cfg.AllowedOrigins)

	{
		authGroup := r.Group("/auth")
		authGroup.POST("/guest", authHandler.GuestHandler)
		authGroup.POST("/logout", authHandler.LogoutHandler)
	}

	r.GET("/me", authHandler.RequireAuthMiddleware, authHandler.MeHandler)

	{
		gameGroup := r.Group("/game")
		gameGroup.Use(authHandler.RequireAuthMiddleware)
		gameHandler.Register(gameGroup)
	}

	log.Info().Str("port", cfg.ServerPort).Msg("server starting")
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
