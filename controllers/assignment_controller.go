package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openlearnhq/studypath/config"
	"github.com/openlearnhq/studypath/middleware"
	"github.com/openlearnhq/studypath/models"
	"github.com/openlearnhq/studypath/services"
	"github.com/openlearnhq/studypath/utils"
)

// AssignmentController serves assignment CRUD, submissions and grading.
type AssignmentController struct {
	db          *gorm.DB
	submissions *services.SubmissionService
}

// NewAssignmentController creates an AssignmentController.
func NewAssignmentController(db *gorm.DB, submissions *services.SubmissionService) *AssignmentController {
	return &AssignmentController{db: db, submissions: submissions}
}

// CreateAssignment creates an assignment on a course the caller owns.
func (a *AssignmentController) CreateAssignment(ctx *gin.Context) {
	var req struct {
		CourseID uint      `json:"course_id" binding:"required"`
		Title    string    `json:"title" binding:"required,min=2,max=255"`
		Problem  string    `json:"problem" binding:"required"`
		DueAt    time.Time `json:"due_at"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	teacherID := middleware.CurrentUserID(ctx)
	var course models.Course
	if err := a.db.First(&course, req.CourseID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40415, "course not found")
		return
	}
	if course.TeacherID != teacherID {
		utils.Error(ctx, http.StatusForbidden, 40302, "not the course owner")
		return
	}

	assignment := models.Assignment{
		CourseID:  course.ID,
		TeacherID: teacherID,
		Title:     strings.TrimSpace(req.Title),
		Problem:   utils.Sanitize(req.Problem),
		DueAt:     req.DueAt,
	}
	if err := a.db.Create(&assignment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to create assignment")
		return
	}
	utils.Success(ctx, assignment)
}

// UpdateAssignment modifies an owned assignment.
func (a *AssignmentController) UpdateAssignment(ctx *gin.Context) {
	assignment, ok := a.ownedAssignment(ctx)
	if !ok {
		return
	}

	var req struct {
		Title   string     `json:"title"`
		Problem string     `json:"problem"`
		DueAt   *time.Time `json:"due_at"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	if t := strings.TrimSpace(req.Title); t != "" {
		assignment.Title = t
	}
	if req.Problem != "" {
		assignment.Problem = utils.Sanitize(req.Problem)
	}
	if req.DueAt != nil {
		assignment.DueAt = *req.DueAt
	}
	if err := a.db.Save(assignment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to update assignment")
		return
	}
	utils.Success(ctx, assignment)
}

// ListAssignments returns a course's assignments ordered by due date.
func (a *AssignmentController) ListAssignments(ctx *gin.Context) {
	courseID := ctx.Query("course_id")
	q := a.db.Model(&models.Assignment{})
	if courseID != "" {
		q = q.Where("course_id = ?", courseID)
	}

	var assignments []models.Assignment
	if err := q.Order("due_at ASC").Find(&assignments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to list assignments")
		return
	}
	utils.Success(ctx, assignments)
}

// GetAssignment returns one assignment, plus the caller's own submission if
// one exists.
func (a *AssignmentController) GetAssignment(ctx *gin.Context) {
	var assignment models.Assignment
	if err := a.db.First(&assignment, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40416, "assignment not found")
		return
	}

	var mine *models.Submission
	var sub models.Submission
	err := a.db.Where("assignment_id = ? AND user_id = ?", assignment.ID, middleware.CurrentUserID(ctx)).
		First(&sub).Error
	if err == nil {
		mine = &sub
	}

	utils.Success(ctx, gin.H{"assignment": assignment, "my_submission": mine})
}

// Submit stores the caller's answer. A second attempt returns 409; the first
// submission stays untouched.
func (a *AssignmentController) Submit(ctx *gin.Context) {
	assignmentID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid assignment id")
		return
	}

	var req struct {
		Content      string `json:"content" binding:"required"`
		AttachmentID uint   `json:"attachment_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	sub, err := a.submissions.SubmitAssignment(ctx.Request.Context(), uint(assignmentID), middleware.CurrentUserID(ctx), req.Content, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateSubmission):
			utils.Error(ctx, http.StatusConflict, 40902, "assignment already submitted")
		case errors.Is(err, services.ErrValidation):
			utils.Error(ctx, http.StatusBadRequest, 40023, err.Error())
		case errors.Is(err, services.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40416, "assignment not found")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to store submission")
		}
		return
	}
	utils.Success(ctx, sub)
}

// ListSubmissions returns all submissions for an owned assignment.
func (a *AssignmentController) ListSubmissions(ctx *gin.Context) {
	assignment, ok := a.ownedAssignment(ctx)
	if !ok {
		return
	}

	var subs []models.Submission
	err := a.db.Preload("User").
		Where("assignment_id = ?", assignment.ID).
		Order("submitted_at ASC").
		Find(&subs).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list submissions")
		return
	}
	utils.Success(ctx, subs)
}

// Grade scores a submission on an owned assignment and notifies the student
// by mail. Re-grading overwrites the previous score.
func (a *AssignmentController) Grade(ctx *gin.Context) {
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
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	var existing models.Submission
	if err := a.db.First(&existing, submissionID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40417, "submission not found")
		return
	}
	var assignment models.Assignment
	if err := a.db.First(&assignment, existing.AssignmentID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40416, "assignment not found")
		return
	}
	if assignment.TeacherID != middleware.CurrentUserID(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40303, "not the assignment owner")
		return
	}

	graded, err := a.submissions.GradeSubmission(ctx.Request.Context(), uint(submissionID), req.Grade, strings.TrimSpace(req.Feedback))
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			utils.Error(ctx, http.StatusBadRequest, 40025, err.Error())
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to grade submission")
		return
	}

	go a.notifyGrade(assignment, graded)

	utils.Success(ctx, graded)
}

// notifyGrade mails the student about a fresh grade. Best effort; a mail
// failure never affects the grading response.
func (a *AssignmentController) notifyGrade(assignment models.Assignment, sub *models.Submission) {
	defer func() { _ = recover() }()

	var student models.User
	if err := a.db.First(&student, sub.UserID).Error; err != nil || student.Email == "" {
		return
	}

	subject := fmt.Sprintf("Your submission for %q was graded", assignment.Title)
	body := fmt.Sprintf("Grade: %d/100\n\nFeedback:\n%s", *sub.Grade, sub.Feedback)
	if err := utils.SendMail(student.Email, subject, body); err != nil {
		zap.L().Warn("grade notification mail failed",
			zap.Uint("user_id", student.ID),
			zap.Uint("submission_id", sub.ID),
			zap.Error(err))
	}
}

// UploadAttachment stores a file referenced from a submission. Files expire
// per configuration and are removed by the background cleaner.
func (a *AssignmentController) UploadAttachment(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40026, "no file uploaded")
		return
	}
	defer file.Close()

	const maxSize = 20 * 1024 * 1024
	if header.Size > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40027, "file size exceeds 20MB")
		return
	}

	cfg := config.Get()
	now := time.Now()
	baseDir := filepath.Join(cfg.UploadDir, now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to create upload directory")
		return
	}

	objectName := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	dstPath := filepath.Join(baseDir, objectName)

	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to save file")
		return
	}
	defer out.Close()

	written, err := io.Copy(out, io.LimitReader(file, maxSize+1))
	if err != nil || written > maxSize {
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusBadRequest, 40027, "failed to store file")
		return
	}

	attachment := models.Attachment{
		UserID:       middleware.CurrentUserID(ctx),
		ObjectName:   objectName,
		OriginalName: filepath.Base(header.Filename),
		FilePath:     dstPath,
		SizeBytes:    written,
		ExpiresAt:    now.Add(time.Duration(cfg.UploadTTLHours) * time.Hour),
	}
	if err := a.db.Create(&attachment).Error; err != nil {
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to record upload")
		return
	}

	utils.Success(ctx, attachment)
}

func (a *AssignmentController) ownedAssignment(ctx *gin.Context) (*models.Assignment, bool) {
	var assignment models.Assignment
	if err := a.db.First(&assignment, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40416, "assignment not found")
		return nil, false
	}
	if assignment.TeacherID != middleware.CurrentUserID(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40303, "not the assignment owner")
		return nil, false
	}
	return &assignment, true
}
