package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/adapters/engine"
	"github.com/irthomasthomas/Observer-sub001/adapters/translate"
	"github.com/irthomasthomas/Observer-sub001/config"
	"github.com/irthomasthomas/Observer-sub001/domain/entities"
	"github.com/irthomasthomas/Observer-sub001/domain/repositories"
	"github.com/irthomasthomas/Observer-sub001/internal/api"
	"github.com/irthomasthomas/Observer-sub001/internal/auth"
	"github.com/irthomasthomas/Observer-sub001/internal/model"
	"github.com/irthomasthomas/Observer-sub001/internal/recorder"
	"github.com/irthomasthomas/Observer-sub001/internal/websocket"
)

func main() {
	godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load(logger)

	// One manager instance owns the model for the whole process.
	manager := model.NewManager(engineFactory(cfg, logger), cfg.TranscribeTimeout, logger.Named("model"))

	newService := func() *recorder.Service {
		return recorder.NewService(manager, recorder.Options{
			ChunkDuration:       cfg.ChunkDuration,
			MaxInFlight:         cfg.MaxInFlight,
			TranscriptRetention: cfg.TranscriptRetention,
			ModelConfig:         cfg.Model,
		}, logger.Named("recorder"))
	}

	issuer := auth.NewIssuer(cfg.JWTSecret)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	hub := websocket.NewHub(newService, logger.Named("ws"))
	go hub.Run()

	api.InitRoutes(e, hub, manager, issuer, logger)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Transcription server started",
		zap.String("port", cfg.Port),
		zap.String("engine", cfg.Engine),
		zap.String("modelID", cfg.Model.ModelID))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	manager.Unload()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// engineFactory builds the speech engine per the configured backend, wrapping
// it for translation when the model task asks for it.
func engineFactory(cfg config.Config, logger *zap.Logger) func() repositories.SpeechEngine {
	return func() repositories.SpeechEngine {
		var eng repositories.SpeechEngine
		switch cfg.Engine {
		case "google":
			eng = engine.NewGoogleEngine(logger.Named("engine"))
		default:
			eng = engine.NewMockEngine(logger.Named("engine"))
		}

		if cfg.Model.Task == entities.TaskTranslate {
			translator, err := translate.NewGeminiTranslator(logger.Named("translate"))
			if err != nil {
				logger.Warn("Translator unavailable, transcripts will not be translated", zap.Error(err))
				return eng
			}
			// The translate task targets English, matching speech models.
			return engine.NewTranslatingEngine(eng, translator, "en", logger.Named("engine"))
		}
		return eng
	}
}
