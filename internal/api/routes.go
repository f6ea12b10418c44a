package api

import (
	"net/http"

	"astroconnect_go_backend/internal/errors"
	"astroconnect_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func SetupRoutes(
	r *gin.Engine,
	sessionService *services.SessionService,
	astrologerService services.AstrologerLister,
	kundaliService *services.KundaliService,
	astroAIService *services.AstroAIService,
	predictionService *services.PredictionService,
	reportService *services.ReportService,
) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/astrologers", listAstrologersHandler(astrologerService))

		api.GET("/wallet", getWalletHandler(sessionService))
		api.POST("/wallet/add", addFundsHandler(sessionService))
		api.POST("/wallet/reset", resetWalletHandler(sessionService))

		api.POST("/sessions", startSessionHandler(sessionService))
		api.GET("/sessions/current", sessionInfoHandler(sessionService))
		api.POST("/sessions/:session_id/end", endSessionHandler(sessionService))
		api.GET("/sessions/messages", sessionMessagesHandler(sessionService))
		api.POST("/sessions/messages", sendMessageHandler(sessionService))

		api.POST("/kundali", generateKundaliHandler(kundaliService))
		api.POST("/kundali/report", kundaliReportHandler(kundaliService, reportService))
		api.POST("/ai/chat", aiChatHandler(astroAIService))
		api.GET("/predictions/:sign", dailyPredictionHandler(predictionService))
	}
}

func listAstrologersHandler(astrologerService services.AstrologerLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		astrologers, err := astrologerService.ListAstrologers(c.Request.Context())
		if err != nil {
			errors.HandleError(c, errors.LogAndReturn500(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"astrologers": astrologers})
	}
}

func walletResponse(sessionService *services.SessionService) gin.H {
	wallet := sessionService.Wallet()
	return gin.H{
		"balance":  wallet.Balance(),
		"is_low":   wallet.IsLow(),
		"is_empty": wallet.IsEmpty(),
	}
}

func getWalletHandler(sessionService *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, walletResponse(sessionService))
	}
}

func addFundsHandler(sessionService *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Amount decimal.Decimal `json:"amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.IsPositive() {
			errors.HandleError(c, errors.New400Error("amount must be a positive number"))
			return
		}
		sessionService.Wallet().Add(req.Amount)
		// Funds added while waiting clears the awaiting-funds prompt.
		sessionService.CancelAwaitingFunds()
		c.JSON(http.StatusOK, walletResponse(sessionService))
	}
}

func resetWalletHandler(sessionService *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionService.Wallet().Reset()
		c.JSON(http.StatusOK, walletResponse(sessionService))
	}
}

func startSessionHandler(sessionService *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			AstrologerID string `json:"astrologer_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.HandleError(c, errors.New400Error("astrologer_id is required"))
			return
		}

		info, err := sessionService.StartSession(c.Request.Context(), req.AstrologerID)
		switch err {
		case nil:
			c.JSON(http.StatusCreated, info)
		case services.ErrInsufficientFunds:
			errors.HandleError(c, errors.New402Error(err.Error()))
		case services.ErrSessionAlreadyActive:
			errors.HandleError(c, errors.New409Error(err.Error()))
		case services.ErrAstrologerUnavailable:
			errors.HandleError(c, errors.New409Error(err.Error()))
		case services.ErrSessionNotFound:
			errors.HandleError(c, errors.New404Error("astrologer not found"))
		default:
			errors.HandleError(c, errors.LogAndReturn500(err))
		}
	}
}

func sessionInfoHandler(sessionService *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sessionService.Info())
	}
}

func endSessionHandler(sessionService *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if err := sessionService.EndSession(c.Request.Context(), sessionID); err != nil {
			errors.HandleError(c, errors.New404Error("no active session with that id"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ended"})
	}
}

func sessionMessagesHandler(sessionService *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"messages": sessionService.Stream().Messages()})
	}
}

func sendMessageHandler(sessionService *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.HandleError(c, errors.New400Error("invalid request body"))
			return
		}
		if err := sessionService.Stream().Send(c.Request.Context(), req.Content, "user"); err != nil {
			errors.HandleError(c, errors.New400Error(err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	}
}
