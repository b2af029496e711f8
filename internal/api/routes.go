package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/domain"
	"github.com/irthomasthomas/Observer-sub001/domain/entities"
	"github.com/irthomasthomas/Observer-sub001/internal/auth"
	"github.com/irthomasthomas/Observer-sub001/internal/model"
	"github.com/irthomasthomas/Observer-sub001/internal/websocket"
)

// InitRoutes wires the HTTP surface: health, model lifecycle, stream auth
// and the websocket endpoint.
func InitRoutes(e *echo.Echo, hub *websocket.Hub, manager *model.Manager, issuer *auth.Issuer, logger *zap.Logger) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "observer-transcription",
		})
	})

	v1 := e.Group("/api/v1")

	v1.POST("/stream/auth", func(c echo.Context) error {
		return streamAuth(c, issuer, logger)
	})

	v1.GET("/model", func(c echo.Context) error {
		return c.JSON(http.StatusOK, ModelStateResponse{State: manager.State()})
	})

	v1.POST("/model/load", func(c echo.Context) error {
		return loadModel(c, manager, logger)
	})

	v1.POST("/model/unload", func(c echo.Context) error {
		manager.Unload()
		return c.JSON(http.StatusOK, ModelStateResponse{State: manager.State()})
	})

	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, issuer, logger)
	})
}

// streamAuth issues a token for a streaming client.
func streamAuth(c echo.Context, issuer *auth.Issuer, logger *zap.Logger) error {
	var req StreamAuthRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind stream auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.New().String()
	}

	token, err := issuer.GenerateStreamToken(clientID)
	if err != nil {
		logger.Error("Failed to generate stream token",
			zap.String("clientID", clientID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Stream client authenticated", zap.String("clientID", clientID))

	return c.JSON(http.StatusOK, StreamAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		ClientID:  clientID,
	})
}

// loadModel starts a model load from the request config.
func loadModel(c echo.Context, manager *model.Manager, logger *zap.Logger) error {
	var req LoadModelRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind load model request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	cfg := entities.ModelConfig{
		ModelID:   req.ModelID,
		Task:      entities.Task(req.Task),
		Language:  req.Language,
		Quantized: req.Quantized,
	}

	if err := manager.Load(cfg); err != nil {
		if errors.Is(err, domain.ErrAlreadyLoadingOrLoaded) {
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "already_loading_or_loaded",
				Message: "Unload the current model first",
			})
		}
		logger.Error("Model load rejected", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_model_config",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusAccepted, ModelStateResponse{State: manager.State()})
}

// websocketWithAuth validates the stream token before upgrading.
func websocketWithAuth(hub *websocket.Hub, c echo.Context, issuer *auth.Issuer, logger *zap.Logger) error {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != "stream" {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only stream tokens are allowed for WebSocket connections",
		})
	}

	if claims.ClientID == "" {
		logger.Error("WebSocket connection rejected: missing client ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Client ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("clientID", claims.ClientID))

	return websocket.HandleWebSocket(hub, c, claims.ClientID, logger)
}
