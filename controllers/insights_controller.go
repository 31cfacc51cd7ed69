package controllers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openlearnhq/studypath/middleware"
	"github.com/openlearnhq/studypath/models"
	"github.com/openlearnhq/studypath/services"
	"github.com/openlearnhq/studypath/utils"
)

// InsightsController aggregates classroom activity for the teacher dashboard
// and optionally narrates it through the insight oracle.
type InsightsController struct {
	db       *gorm.DB
	insights services.InsightOracle
}

// NewInsightsController creates an InsightsController. insights may be nil;
// the dashboard then serves numbers without a narrative summary.
func NewInsightsController(db *gorm.DB, insights services.InsightOracle) *InsightsController {
	return &InsightsController{db: db, insights: insights}
}

// Classroom returns seven-day aggregates across all of the caller's courses:
// enrolled students, completions, submissions, average grade, active
// students, and an optional model-written summary.
func (i *InsightsController) Classroom(ctx *gin.Context) {
	teacherID := middleware.CurrentUserID(ctx)
	since := time.Now().AddDate(0, 0, -7)

	var courseIDs []uint
	if err := i.db.Model(&models.Course{}).
		Where("teacher_id = ?", teacherID).
		Pluck("id", &courseIDs).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to load courses")
		return
	}
	if len(courseIDs) == 0 {
		utils.Success(ctx, gin.H{"stats": services.InsightStats{}, "summary": "", "degraded": false})
		return
	}

	stats, err := i.collect(courseIDs, since)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to aggregate activity")
		return
	}

	summary, degraded := "", false
	if i.insights != nil {
		sctx, cancel := services.WithDeadline(ctx.Request.Context(), 0)
		defer cancel()
		summary, err = i.insights.Summarize(sctx, *stats)
		if err != nil {
			if !errors.Is(err, services.ErrOracleUnavailable) {
				utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to summarize activity")
				return
			}
			summary, degraded = "", true
		}
	}

	utils.Success(ctx, gin.H{"stats": stats, "summary": summary, "degraded": degraded})
}

func (i *InsightsController) collect(courseIDs []uint, since time.Time) (*services.InsightStats, error) {
	stats := &services.InsightStats{}

	// Students are everyone who ever completed a lesson or submitted in
	// these courses; the union is deduplicated across both sources.
	var progressUsers, submissionUsers []uint
	err := i.db.Model(&models.Progress{}).
		Joins("JOIN lessons ON lessons.id = progresses.lesson_id").
		Where("lessons.course_id IN ?", courseIDs).
		Pluck("progresses.user_id", &progressUsers).Error
	if err != nil {
		return nil, err
	}
	err = i.db.Model(&models.Submission{}).
		Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
		Where("assignments.course_id IN ?", courseIDs).
		Pluck("submissions.user_id", &submissionUsers).Error
	if err != nil {
		return nil, err
	}
	stats.Students = len(utils.UniqueUint(append(progressUsers, submissionUsers...)))

	err = i.db.Model(&models.Progress{}).
		Joins("JOIN lessons ON lessons.id = progresses.lesson_id").
		Where("lessons.course_id IN ? AND progresses.completed_at >= ?", courseIDs, since).
		Count(&stats.LessonsCompleted).Error
	if err != nil {
		return nil, err
	}

	err = i.db.Model(&models.Submission{}).
		Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
		Where("assignments.course_id IN ? AND submissions.submitted_at >= ?", courseIDs, since).
		Count(&stats.Submissions).Error
	if err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	err = i.db.Model(&models.Submission{}).
		Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
		Where("assignments.course_id IN ? AND submissions.grade IS NOT NULL", courseIDs).
		Select("AVG(submissions.grade)").
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	if avg.Valid {
		stats.AverageGrade = avg.Float64
	}

	var activeUsers []uint
	err = i.db.Model(&models.Progress{}).
		Joins("JOIN lessons ON lessons.id = progresses.lesson_id").
		Where("lessons.course_id IN ? AND progresses.completed_at >= ?", courseIDs, since).
		Pluck("progresses.user_id", &activeUsers).Error
	if err != nil {
		return nil, err
	}
	stats.ActiveStudents = len(utils.UniqueUint(activeUsers))

	return stats, nil
}

// Activity returns the per-route request counters for the last N days,
// feeding the dashboard's traffic chart.
func (i *InsightsController) Activity(ctx *gin.Context) {
	days := 7
	if v := ctx.Query("days"); v == "30" {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	var stats []models.RequestStat
	err := i.db.Where("date >= ?", since).
		Order("date ASC, count DESC").
		Find(&stats).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to load activity counters")
		return
	}
	utils.Success(ctx, gin.H{"days": days, "items": stats})
}
