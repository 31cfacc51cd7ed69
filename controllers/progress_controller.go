package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openlearnhq/studypath/config"
	"github.com/openlearnhq/studypath/middleware"
	"github.com/openlearnhq/studypath/services"
	"github.com/openlearnhq/studypath/utils"
)

// ProgressController exposes lesson completion and the student dashboard.
type ProgressController struct {
	progress  *services.ProgressionService
	recommend services.RecommendationOracle
}

// NewProgressController creates a ProgressController. recommend may be nil
// when no oracle backend is configured.
func NewProgressController(progress *services.ProgressionService, recommend services.RecommendationOracle) *ProgressController {
	return &ProgressController{progress: progress, recommend: recommend}
}

// CompleteLesson records a completion. Safe to call repeatedly; a repeat
// reports already_completed instead of failing or double-crediting.
func (p *ProgressController) CompleteLesson(ctx *gin.Context) {
	lessonID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid lesson id")
		return
	}
	userID := middleware.CurrentUserID(ctx)

	result, err := p.progress.CompleteLesson(ctx.Request.Context(), userID, uint(lessonID), time.Now())
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40413, "lesson not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to record completion")
		return
	}

	// The study state changed, so any cached recommendation is stale.
	utils.CacheDelete(recommendationCacheKey(userID))

	utils.Success(ctx, result)
}

// MyProgress returns the student dashboard: XP, streak, completions, badges.
func (p *ProgressController) MyProgress(ctx *gin.Context) {
	overview, err := p.progress.Overview(ctx.Request.Context(), middleware.CurrentUserID(ctx), time.Now())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load progress overview")
		return
	}
	utils.Success(ctx, overview)
}

// ContinueLearning suggests the next lesson. The suggestion is cached per
// user; when the model backend is unavailable the endpoint still answers,
// with an empty recommendation and degraded=true.
func (p *ProgressController) ContinueLearning(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)

	cacheKey := recommendationCacheKey(userID)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	if p.recommend == nil {
		utils.Success(ctx, gin.H{"recommendation": nil, "degraded": true})
		return
	}

	rctx, cancel := services.WithDeadline(ctx.Request.Context(), 0)
	defer cancel()

	rec, err := p.recommend.Recommend(rctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrOracleUnavailable) {
			utils.Success(ctx, gin.H{"recommendation": nil, "degraded": true})
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to compute recommendation")
		return
	}

	payload := gin.H{"recommendation": rec, "degraded": false}
	ttl := time.Duration(config.Get().OracleCacheTTLm) * time.Minute
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, ttl)
	utils.Success(ctx, payload)
}

func recommendationCacheKey(userID uint) string {
	return fmt.Sprintf("cache:recommend:user:%d", userID)
}
