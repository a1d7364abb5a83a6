package routes

import (
	"github.com/casedeck/casedeck-backend/internal/handler"
	"github.com/casedeck/casedeck-backend/internal/middleware"
	"github.com/casedeck/casedeck-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	caseStudyHandler *handler.CaseStudyHandler,
	jobHandler *handler.JobHandler,
	settingHandler *handler.SettingHandler,
	jwtManager *jwt.Manager,
) {
	api := router.Group("/api/v1")

	// Case studies: reads are open, mutations require auth
	caseStudies := api.Group("/case-studies")
	{
		caseStudies.GET("", caseStudyHandler.ListCaseStudies)
		caseStudies.GET("/:id", caseStudyHandler.GetCaseStudy)
		caseStudies.GET("/:id/versions", caseStudyHandler.GetVersionHistory)

		caseStudies.POST("", middleware.JWTAuth(jwtManager), caseStudyHandler.CreateCaseStudy)
		caseStudies.PATCH("/:id", middleware.JWTAuth(jwtManager), caseStudyHandler.UpdateCaseStudy)
		caseStudies.DELETE("/:id", middleware.JWTAuth(jwtManager), caseStudyHandler.DeleteCaseStudy)
		caseStudies.POST("/:id/restore", middleware.JWTAuth(jwtManager), caseStudyHandler.RestoreCaseStudy)
	}

	// Propagation jobs (admin)
	propagations := api.Group("/propagations", middleware.JWTAuth(jwtManager), middleware.AdminOnly())
	{
		propagations.GET("", jobHandler.ListJobs)
		propagations.POST("", jobHandler.Propagate)
		propagations.GET("/:id", jobHandler.GetJob)
		propagations.POST("/:id/cancel", jobHandler.CancelJob)
	}

	// Generation settings (admin); updates trigger a propagation
	settings := api.Group("/settings", middleware.JWTAuth(jwtManager), middleware.AdminOnly())
	{
		settings.GET("", settingHandler.ListSettings)
		settings.GET("/:key", settingHandler.GetSetting)
		settings.PUT("/:key", settingHandler.UpdateSetting)
	}
}
