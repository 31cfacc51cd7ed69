package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openlearnhq/studypath/config"
	"github.com/openlearnhq/studypath/controllers"
	"github.com/openlearnhq/studypath/middleware"
	"github.com/openlearnhq/studypath/services"
	"github.com/openlearnhq/studypath/utils"
)

// SetupRouter wires routes, middlewares and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Request logging goes to its own rolling file, separate from app logs.
	gl, err := utils.NewRollingFileLogger(cfg.GinLogPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Use(middleware.ActivityRecorder(db))

	r.Static("/uploads", "./"+cfg.UploadDir)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	// Oracle features share one chat client; every controller that holds an
	// oracle tolerates its absence.
	chatClient := services.NewChatClient(cfg)
	oracle := services.NewAIOracle(db, chatClient)
	progression := services.NewProgressionService(db)
	submissions := services.NewSubmissionService(db, cfg.MinSubmissionChars)

	authController := controllers.NewAuthController(db)
	courseController := controllers.NewCourseController(db, progression, oracle, oracle)
	progressController := controllers.NewProgressController(progression, oracle)
	assignmentController := controllers.NewAssignmentController(db, submissions)
	challengeController := controllers.NewChallengeController(db, submissions, oracle)
	insightsController := controllers.NewInsightsController(db, oracle)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/send-email-code", authController.SendEmailCode)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	// Catalog browsing is public; everything stateful requires auth.
	api.GET("/courses", courseController.ListCourses)
	api.GET("/courses/:id", courseController.GetCourse)

	student := api.Group("")
	student.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	student.GET("/courses/:id/progress", courseController.CourseProgress)
	student.GET("/lessons/:id", courseController.GetLesson)
	student.POST("/lessons/:id/complete", progressController.CompleteLesson)
	student.GET("/questions/:qid/hint", courseController.QuestionHint)
	student.GET("/me/progress", progressController.MyProgress)
	student.GET("/me/continue", progressController.ContinueLearning)
	student.GET("/assignments", assignmentController.ListAssignments)
	student.GET("/assignments/:id", assignmentController.GetAssignment)
	student.POST("/assignments/:id/submit", assignmentController.Submit)
	student.POST("/upload", assignmentController.UploadAttachment)
	student.GET("/challenges/today", challengeController.Today)
	student.POST("/challenges/:id/submit", challengeController.Submit)
	student.GET("/challenges/:id/comments", challengeController.ListComments)
	student.POST("/challenges/:id/comments", challengeController.CreateComment)

	teacher := api.Group("/teach")
	teacher.Use(middleware.AuthRequired(), middleware.TeacherRequired(), middleware.RateLimitMiddleware())
	teacher.POST("/courses", courseController.CreateCourse)
	teacher.PUT("/courses/:id", courseController.UpdateCourse)
	teacher.DELETE("/courses/:id", courseController.DeleteCourse)
	teacher.POST("/courses/:id/topics", courseController.CreateTopic)
	teacher.POST("/courses/:id/lessons", courseController.CreateLesson)
	teacher.POST("/courses/:id/lessons/draft", courseController.DraftLessonContent)
	teacher.PUT("/lessons/:id", courseController.UpdateLesson)
	teacher.DELETE("/lessons/:id", courseController.DeleteLesson)
	teacher.POST("/lessons/:id/questions", courseController.CreateQuestion)
	teacher.DELETE("/questions/:qid", courseController.DeleteQuestion)
	teacher.POST("/courses/:id/badges", courseController.CreateBadge)
	teacher.POST("/assignments", assignmentController.CreateAssignment)
	teacher.PUT("/assignments/:id", assignmentController.UpdateAssignment)
	teacher.GET("/assignments/:id/submissions", assignmentController.ListSubmissions)
	teacher.POST("/submissions/:sid/grade", assignmentController.Grade)
	teacher.POST("/challenges", challengeController.Create)
	teacher.POST("/challenge-submissions/:sid/grade", challengeController.GradeSubmission)
	teacher.GET("/insights", insightsController.Classroom)
	teacher.GET("/insights/activity", insightsController.Activity)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
