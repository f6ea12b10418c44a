package api

import (
	"net/http"

	"astroconnect_go_backend/internal/errors"
	"astroconnect_go_backend/internal/models"
	"astroconnect_go_backend/internal/services"

	"github.com/gin-gonic/gin"
)

func generateKundaliHandler(kundaliService *services.KundaliService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var birth models.BirthDetails
		if err := c.ShouldBindJSON(&birth); err != nil {
			errors.HandleError(c, errors.New400Error("all birth details are required"))
			return
		}

		chart, err := kundaliService.GenerateKundali(c.Request.Context(), birth)
		if err != nil {
			// The one user-visible failure: both the remote call and the
			// fallback produced nothing usable.
			errors.HandleError(c, errors.LogAndReturn500(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"kundali": chart})
	}
}

func kundaliReportHandler(kundaliService *services.KundaliService, reportService *services.ReportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var birth models.BirthDetails
		if err := c.ShouldBindJSON(&birth); err != nil {
			errors.HandleError(c, errors.New400Error("all birth details are required"))
			return
		}

		chart, err := kundaliService.GenerateKundali(c.Request.Context(), birth)
		if err != nil {
			errors.HandleError(c, errors.LogAndReturn500(err))
			return
		}

		pdfBytes, err := reportService.KundaliReport(birth, *chart)
		if err != nil {
			errors.HandleError(c, errors.LogAndReturn500(err))
			return
		}

		c.Header("Content-Disposition", `attachment; filename="kundali-report.pdf"`)
		c.Data(http.StatusOK, "application/pdf", pdfBytes)
	}
}

func aiChatHandler(astroAIService *services.AstroAIService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Messages    []services.ChatTurn  `json:"messages" binding:"required"`
			KundaliData *models.BirthDetails `json:"kundaliData"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Messages) == 0 {
			errors.HandleError(c, errors.New400Error("messages are required"))
			return
		}

		reply := astroAIService.Chat(c.Request.Context(), req.Messages, req.KundaliData)
		c.JSON(http.StatusOK, gin.H{"message": reply})
	}
}

func dailyPredictionHandler(predictionService *services.PredictionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		prediction, err := predictionService.DailyPrediction(c.Param("sign"))
		if err != nil {
			errors.HandleError(c, errors.New400Error(err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{"prediction": prediction})
	}
}
