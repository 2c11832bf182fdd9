package api

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	log *logger.Logger,
	authService service.AuthService,
	programService service.ProgramService,
	exerciseService service.ExerciseService,
	libraryService service.LibraryService,
	completenessService service.CompletenessService,
	subscriber Subscriber,
) {
	authHandler := NewAuthHandler(authService, log)
	programHandler := NewProgramHandler(programService, log)
	exerciseHandler := NewExerciseHandler(exerciseService, log)
	libraryHandler := NewLibraryHandler(libraryService, log)
	completenessHandler := NewCompletenessHandler(completenessService, log)
	streamHandler := NewStreamHandler(programService, subscriber, log)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	// Every content route needs a creator token; ownership is checked per request.
	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret), RoleMiddleware(domain.RoleCreator, domain.RoleAdmin))
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Programs ---
		programs := protected.Group("/programs")
		{
			programs.POST("", programHandler.CreateProgram)
			programs.GET("", programHandler.ListPrograms)
			programs.GET("/:id", programHandler.GetProgram)
			programs.PATCH("/:id", programHandler.PatchProgram)
			programs.POST("/:id/modules", programHandler.CreateModule)
			programs.GET("/:id/modules", programHandler.ListModules)
			programs.PUT("/:id/modules/order", programHandler.ReorderModules)
			programs.GET("/:id/completeness", completenessHandler.ProgramCompleteness)
			programs.GET("/:id/stream", streamHandler.StreamProgram)
		}

		// --- Modules ---
		modules := protected.Group("/modules")
		{
			modules.PUT("/:id", programHandler.UpdateModule)
			modules.DELETE("/:id", programHandler.DeleteModule)
			modules.POST("/:id/sessions", programHandler.CreateSession)
			modules.GET("/:id/sessions", programHandler.ListSessions)
			modules.PUT("/:id/sessions/order", programHandler.ReorderSessions)
			modules.GET("/:id/completeness", completenessHandler.ModuleCompleteness)
			modules.POST("/:id/completeness/refresh", completenessHandler.RefreshModule)
		}

		// --- Sessions ---
		sessions := protected.Group("/sessions")
		{
			sessions.PUT("/:id", programHandler.UpdateSession)
			sessions.DELETE("/:id", programHandler.DeleteSession)
			sessions.POST("/:id/exercises", exerciseHandler.CreateExercise)
			sessions.GET("/:id/exercises", exerciseHandler.ListExercises)
			sessions.PUT("/:id/exercises/order", exerciseHandler.ReorderExercises)
		}

		// --- Exercises & Sets ---
		exercises := protected.Group("/exercises")
		{
			exercises.GET("/:id", exerciseHandler.GetExercise)
			exercises.PUT("/:id", exerciseHandler.UpdateExercise)
			exercises.DELETE("/:id", exerciseHandler.DeleteExercise)
			exercises.POST("/:id/sets", exerciseHandler.CreateSet)
			exercises.GET("/:id/sets", exerciseHandler.ListSets)
			exercises.PUT("/:id/sets/order", exerciseHandler.ReorderSets)
			exercises.GET("/:id/completeness", completenessHandler.ExerciseCompleteness)
		}
		sets := protected.Group("/sets")
		{
			sets.PATCH("/:id", exerciseHandler.UpdateSet)
			sets.DELETE("/:id", exerciseHandler.DeleteSet)
		}

		// --- Library ---
		library := protected.Group("/library")
		{
			library.POST("", libraryHandler.CreateLibraryExercise)
			library.GET("", libraryHandler.ListLibraryExercises)
			library.GET("/:id", libraryHandler.GetLibraryExercise)
			library.PUT("/:id", libraryHandler.UpdateLibraryExercise)
			library.DELETE("/:id", libraryHandler.DeleteLibraryExercise)
			library.POST("/:id/video/upload-url", libraryHandler.RequestVideoUpload)
			library.PUT("/:id/video", libraryHandler.ConfirmVideoUpload)
			library.GET("/:id/video", libraryHandler.GetVideoURL)
		}
	}
}
