package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openlearnhq/studypath/middleware"
	"github.com/openlearnhq/studypath/models"
	"github.com/openlearnhq/studypath/services"
	"github.com/openlearnhq/studypath/utils"
)

// ChallengeController serves the shared daily problem, its discussion thread
// and challenge submissions.
type ChallengeController struct {
	db          *gorm.DB
	submissions *services.SubmissionService
	generator   services.ChallengeOracle
}

// NewChallengeController creates a ChallengeController. generator may be nil;
// days without an authored challenge then fall back to a static problem.
func NewChallengeController(db *gorm.DB, submissions *services.SubmissionService, generator services.ChallengeOracle) *ChallengeController {
	return &ChallengeController{db: db, submissions: submissions, generator: generator}
}

// Today returns the challenge for the current date, creating one on first
// access. An authored challenge always wins; otherwise the generator is
// asked, and if it is down a static fallback problem fills the day so the
// endpoint never returns empty.
func (c *ChallengeController) Today(ctx *gin.Context) {
	dateKey := models.DateKey(time.Now())

	challenge, err := c.findOrCreate(ctx, dateKey)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50036, "failed to load daily challenge")
		return
	}

	var mine *models.ChallengeSubmission
	var sub models.ChallengeSubmission
	err = c.db.Where("challenge_id = ? AND user_id = ?", challenge.ID, middleware.CurrentUserID(ctx)).
		First(&sub).Error
	if err == nil {
		mine = &sub
	}

	utils.Success(ctx, gin.H{"challenge": challenge, "my_submission": mine})
}

func (c *ChallengeController) findOrCreate(ctx *gin.Context, dateKey string) (*models.DailyChallenge, error) {
	var challenge models.DailyChallenge
	err := c.db.Where("date_key = ?", dateKey).First(&challenge).Error
	if err == nil {
		return &challenge, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	title, problem := c.generate(ctx, dateKey)
	challenge = models.DailyChallenge{
		DateKey: dateKey,
		Title:   title,
		Problem: problem,
		Source:  models.ChallengeGenerated,
	}

	// Two first-of-the-day requests can race here; the unique DateKey plus
	// DoNothing makes exactly one insert win, then both read the same row.
	if err := c.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&challenge).Error; err != nil {
		return nil, err
	}
	if err := c.db.Where("date_key = ?", dateKey).First(&challenge).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (c *ChallengeController) generate(ctx *gin.Context, dateKey string) (string, string) {
	if c.generator != nil {
		gctx, cancel := services.WithDeadline(ctx.Request.Context(), 0)
		defer cancel()
		title, problem, err := c.generator.GenerateChallenge(gctx, dateKey)
		if err == nil {
			return title, problem
		}
		zap.L().Warn("daily challenge generation failed, using fallback",
			zap.String("date_key", dateKey),
			zap.Error(err))
	}
	return "Daily review", "Pick one lesson you completed this week and write a short summary of its key idea in your own words."
}

// Create lets a teacher author the challenge for a date before anyone asks
// for it. Defaults to today; a date already holding a challenge is refused.
func (c *ChallengeController) Create(ctx *gin.Context) {
	var req struct {
		DateKey string `json:"date_key"`
		Title   string `json:"title" binding:"required,min=2,max=255"`
		Problem string `json:"problem" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40028, "invalid request payload")
		return
	}

	dateKey := strings.TrimSpace(req.DateKey)
	if dateKey == "" {
		dateKey = models.DateKey(time.Now())
	} else if _, err := time.Parse("2006-01-02", dateKey); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40029, "date_key must be YYYY-MM-DD")
		return
	}

	challenge := models.DailyChallenge{
		DateKey: dateKey,
		Title:   strings.TrimSpace(req.Title),
		Problem: utils.Sanitize(req.Problem),
		Source:  models.ChallengeAuthored,
	}
	if err := c.db.Create(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(ctx, http.StatusConflict, 40903, "a challenge already exists for that date")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50037, "failed to create challenge")
		return
	}
	utils.Success(ctx, challenge)
}

// Submit stores the caller's answer to a challenge, once.
func (c *ChallengeController) Submit(ctx *gin.Context) {
	challengeID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "invalid challenge id")
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40028, "invalid request payload")
		return
	}

	sub, err := c.submissions.SubmitChallenge(ctx.Request.Context(), uint(challengeID), middleware.CurrentUserID(ctx), req.Content, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateSubmission):
			utils.Error(ctx, http.StatusConflict, 40904, "challenge already submitted")
		case errors.Is(err, services.ErrValidation):
			utils.Error(ctx, http.StatusBadRequest, 40034, err.Error())
		case errors.Is(err, services.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40418, "challenge not found")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50038, "failed to store submission")
		}
		return
	}
	utils.Success(ctx, sub)
}

// GradeSubmission scores a challenge submission.
func (c *ChallengeController) GradeSubmission(ctx *gin.Context) {
	submissionID, err := strconv.ParseUint(ctx.Param("sid"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid submission id")
		return
	}

	var req struct {
		Grade    int    `json:"grade" binding:"min=0,max=100"`
		Feedback string `json:"feedback"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40028, "invalid request payload")
		return
	}

	graded, err := c.submissions.GradeChallengeSubmission(ctx.Request.Context(), uint(submissionID), req.Grade, strings.TrimSpace(req.Feedback))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			utils.Error(ctx, http.StatusBadRequest, 40025, err.Error())
		case errors.Is(err, services.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40417, "submission not found")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50039, "failed to grade submission")
		}
		return
	}
	utils.Success(ctx, graded)
}

// ListComments returns a challenge's discussion thread, oldest first.
func (c *ChallengeController) ListComments(ctx *gin.Context) {
	var challenge models.DailyChallenge
	if err := c.db.First(&challenge, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40418, "challenge not found")
		return
	}

	var comments []models.ChallengeComment
	err := c.db.Preload("User").
		Where("challenge_id = ?", challenge.ID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to list comments")
		return
	}
	utils.Success(ctx, comments)
}

// CreateComment adds a reply to a challenge's discussion thread.
func (c *ChallengeController) CreateComment(ctx *gin.Context) {
	var challenge models.DailyChallenge
	if err := c.db.First(&challenge, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40418, "challenge not found")
		return
	}

	var req struct {
		Content string `json:"content" binding:"required,min=1,max=4000"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40028, "invalid request payload")
		return
	}

	comment := models.ChallengeComment{
		ChallengeID: challenge.ID,
		UserID:      middleware.CurrentUserID(ctx),
		Content:     utils.Sanitize(strings.TrimSpace(req.Content)),
	}
	if err := c.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to create comment")
		return
	}
	utils.Success(ctx, comment)
}
