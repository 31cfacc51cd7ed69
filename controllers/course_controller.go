package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openlearnhq/studypath/middleware"
	"github.com/openlearnhq/studypath/models"
	"github.com/openlearnhq/studypath/services"
	"github.com/openlearnhq/studypath/utils"
)

// CourseController serves course catalog CRUD for teachers and course/lesson
// views for students.
type CourseController struct {
	db       *gorm.DB
	progress *services.ProgressionService
	hints    services.HintOracle
	drafts   services.LessonDraftOracle
}

// NewCourseController creates a CourseController. hints and drafts may be
// nil when no oracle backend is configured; hint requests then fall back to
// authored hints and drafting is unavailable.
func NewCourseController(db *gorm.DB, progress *services.ProgressionService, hints services.HintOracle, drafts services.LessonDraftOracle) *CourseController {
	return &CourseController{db: db, progress: progress, hints: hints, drafts: drafts}
}

// CreateCourse creates a course owned by the calling teacher.
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	var req struct {
		Title       string `json:"title" binding:"required,min=2,max=255"`
		Description string `json:"description"`
		Subject     string `json:"subject"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	course := models.Course{
		TeacherID:   middleware.CurrentUserID(ctx),
		Title:       strings.TrimSpace(req.Title),
		Description: utils.Sanitize(req.Description),
		Subject:     strings.TrimSpace(req.Subject),
	}
	if err := c.db.Create(&course).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to create course")
		return
	}
	utils.InvalidateByPrefix("cache:courses:list:")
	utils.Success(ctx, course)
}

// UpdateCourse modifies title, description or subject of an owned course.
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	course, ok := c.ownedCourse(ctx)
	if !ok {
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Subject     string `json:"subject"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	if t := strings.TrimSpace(req.Title); t != "" {
		course.Title = t
	}
	if req.Description != "" {
		course.Description = utils.Sanitize(req.Description)
	}
	if s := strings.TrimSpace(req.Subject); s != "" {
		course.Subject = s
	}
	if err := c.db.Save(course).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to update course")
		return
	}
	c.invalidateCourse(course.ID)
	utils.Success(ctx, course)
}

// DeleteCourse removes a course and, through cascading constraints, its
// topics, lessons and questions.
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	course, ok := c.ownedCourse(ctx)
	if !ok {
		return
	}
	if err := c.db.Delete(course).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to delete course")
		return
	}
	c.invalidateCourse(course.ID)
	utils.Success(ctx, gin.H{"message": "course deleted"})
}

// ListCourses returns the paginated course catalog.
func (c *CourseController) ListCourses(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	subject := strings.TrimSpace(ctx.Query("subject"))

	cacheKey := fmt.Sprintf("cache:courses:list:subject=%s:page=%d:size=%d", subject, page, pageSize)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	q := c.db.Model(&models.Course{})
	if subject != "" {
		q = q.Where("subject = ?", subject)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to count courses")
		return
	}
	var courses []models.Course
	if err := q.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&courses).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to list courses")
		return
	}

	payload := gin.H{
		"items": courses,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// GetCourse returns one course with its topics and lessons in authored order.
func (c *CourseController) GetCourse(ctx *gin.Context) {
	idStr := ctx.Param("id")
	if b, ok := utils.CacheGetBytes("cache:course:detail:" + idStr); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	course, ok := c.loadCourseTree(ctx, idStr)
	if !ok {
		return
	}

	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: course}
	utils.CacheSetJSON("cache:course:detail:"+idStr, wrapper, time.Hour)
	utils.Success(ctx, course)
}

// CourseProgress returns the course tree annotated with the caller's
// completion and unlock state per lesson.
func (c *CourseController) CourseProgress(ctx *gin.Context) {
	course, ok := c.loadCourseTree(ctx, ctx.Param("id"))
	if !ok {
		return
	}
	userID := middleware.CurrentUserID(ctx)

	completed, err := c.progress.CompletedLessons(ctx.Request.Context(), userID, course.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50014, "failed to load progress")
		return
	}

	ordered := services.OrderedLessons(course)
	type lessonState struct {
		models.Lesson
		Completed bool `json:"completed"`
		Unlocked  bool `json:"unlocked"`
	}
	states := make([]lessonState, 0, len(ordered))
	for _, lesson := range ordered {
		states = append(states, lessonState{
			Lesson:    lesson,
			Completed: completed[lesson.ID],
			Unlocked:  services.IsLessonUnlocked(lesson.ID, ordered, completed),
		})
	}

	utils.Success(ctx, gin.H{
		"course":  course,
		"lessons": states,
	})
}

// CreateTopic appends a topic to an owned course.
func (c *CourseController) CreateTopic(ctx *gin.Context) {
	course, ok := c.ownedCourse(ctx)
	if !ok {
		return
	}

	var req struct {
		Title    string `json:"title" binding:"required,min=2,max=255"`
		Position int    `json:"position"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid request payload")
		return
	}

	topic := models.Topic{CourseID: course.ID, Title: strings.TrimSpace(req.Title), Position: req.Position}
	if err := c.db.Create(&topic).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50015, "failed to create topic")
		return
	}
	c.invalidateCourse(course.ID)
	utils.Success(ctx, topic)
}

// CreateLesson appends a lesson to a topic of an owned course.
func (c *CourseController) CreateLesson(ctx *gin.Context) {
	course, ok := c.ownedCourse(ctx)
	if !ok {
		return
	}

	var req struct {
		TopicID  uint   `json:"topic_id" binding:"required"`
		Title    string `json:"title" binding:"required,min=2,max=255"`
		Content  string `json:"content"`
		XP       int    `json:"xp"`
		Position int    `json:"position"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid request payload")
		return
	}
	if req.XP < 0 {
		utils.Error(ctx, http.StatusBadRequest, 40013, "xp must not be negative")
		return
	}

	var topic models.Topic
	if err := c.db.Where("id = ? AND course_id = ?", req.TopicID, course.ID).First(&topic).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40412, "topic not found in course")
		return
	}

	lesson := models.Lesson{
		CourseID: course.ID,
		TopicID:  topic.ID,
		Title:    strings.TrimSpace(req.Title),
		Content:  utils.Sanitize(req.Content),
		XP:       req.XP,
		Position: req.Position,
	}
	if err := c.db.Create(&lesson).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50016, "failed to create lesson")
		return
	}
	c.invalidateCourse(course.ID)
	utils.Success(ctx, lesson)
}

// UpdateLesson modifies an owned lesson.
func (c *CourseController) UpdateLesson(ctx *gin.Context) {
	lesson, ok := c.ownedLesson(ctx)
	if !ok {
		return
	}

	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		XP       *int   `json:"xp"`
		Position *int   `json:"position"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid request payload")
		return
	}

	if t := strings.TrimSpace(req.Title); t != "" {
		lesson.Title = t
	}
	if req.Content != "" {
		lesson.Content = utils.Sanitize(req.Content)
	}
	if req.XP != nil {
		if *req.XP < 0 {
			utils.Error(ctx, http.StatusBadRequest, 40013, "xp must not be negative")
			return
		}
		lesson.XP = *req.XP
	}
	if req.Position != nil {
		lesson.Position = *req.Position
	}
	if err := c.db.Save(lesson).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50017, "failed to update lesson")
		return
	}
	c.invalidateCourse(lesson.CourseID)
	utils.Success(ctx, lesson)
}

// DeleteLesson removes an owned lesson and its questions.
func (c *CourseController) DeleteLesson(ctx *gin.Context) {
	lesson, ok := c.ownedLesson(ctx)
	if !ok {
		return
	}
	if err := c.db.Delete(lesson).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50018, "failed to delete lesson")
		return
	}
	c.invalidateCourse(lesson.CourseID)
	utils.Success(ctx, gin.H{"message": "lesson deleted"})
}

// GetLesson returns one lesson with its quiz questions. Answers and authored
// hints never serialize; only question text, type and options go out.
func (c *CourseController) GetLesson(ctx *gin.Context) {
	var lesson models.Lesson
	err := c.db.Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&lesson, ctx.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40413, "lesson not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50019, "failed to load lesson")
		return
	}

	userID := middleware.CurrentUserID(ctx)
	completed, err := c.progress.CompletedLessons(ctx.Request.Context(), userID, lesson.CourseID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50014, "failed to load progress")
		return
	}

	var course models.Course
	err = c.db.Preload("Topics", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Topics.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&course, lesson.CourseID).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50019, "failed to load lesson")
		return
	}

	utils.Success(ctx, gin.H{
		"lesson":    lesson,
		"completed": completed[lesson.ID],
		"unlocked":  services.IsLessonUnlocked(lesson.ID, services.OrderedLessons(&course), completed),
	})
}

// CreateQuestion appends a quiz question to an owned lesson.
func (c *CourseController) CreateQuestion(ctx *gin.Context) {
	lesson, ok := c.ownedLesson(ctx)
	if !ok {
		return
	}

	var req struct {
		Text     string `json:"text" binding:"required"`
		Type     string `json:"type"`
		Options  string `json:"options"`
		Answer   string `json:"answer" binding:"required"`
		Hint     string `json:"hint"`
		Position int    `json:"position"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40014, "invalid request payload")
		return
	}

	qType := req.Type
	if qType == "" {
		qType = models.QuestionMultipleChoice
	}
	if qType != models.QuestionMultipleChoice && qType != models.QuestionFillBlank {
		utils.Error(ctx, http.StatusBadRequest, 40015, "unsupported question type")
		return
	}
	if qType == models.QuestionMultipleChoice && strings.TrimSpace(req.Options) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40016, "multiple choice questions need options")
		return
	}

	question := models.Question{
		LessonID: lesson.ID,
		Text:     strings.TrimSpace(req.Text),
		Type:     qType,
		Options:  req.Options,
		Answer:   strings.TrimSpace(req.Answer),
		Hint:     strings.TrimSpace(req.Hint),
		Position: req.Position,
	}
	if err := c.db.Create(&question).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create question")
		return
	}
	utils.Success(ctx, question)
}

// DeleteQuestion removes a quiz question from an owned lesson.
func (c *CourseController) DeleteQuestion(ctx *gin.Context) {
	var question models.Question
	if err := c.db.First(&question, ctx.Param("qid")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40414, "question not found")
		return
	}

	var lesson models.Lesson
	if err := c.db.First(&lesson, question.LessonID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40413, "lesson not found")
		return
	}
	if !c.ownsCourse(ctx, lesson.CourseID) {
		return
	}

	if err := c.db.Delete(&question).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to delete question")
		return
	}
	utils.Success(ctx, gin.H{"message": "question deleted"})
}

// QuestionHint returns a tutoring hint for a quiz question. The model backend
// is asked first; when it is down or slow the authored hint serves as the
// degraded answer, so the endpoint stays useful without it.
func (c *CourseController) QuestionHint(ctx *gin.Context) {
	var question models.Question
	if err := c.db.First(&question, ctx.Param("qid")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40414, "question not found")
		return
	}

	if c.hints != nil {
		hctx, cancel := services.WithDeadline(ctx.Request.Context(), 0)
		defer cancel()
		if hint, err := c.hints.Hint(hctx, question); err == nil {
			utils.Success(ctx, gin.H{"hint": hint, "source": "generated"})
			return
		} else if !errors.Is(err, services.ErrOracleUnavailable) {
			utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to produce hint")
			return
		}
	}

	if question.Hint != "" {
		utils.Success(ctx, gin.H{"hint": question.Hint, "source": "authored"})
		return
	}
	utils.Error(ctx, http.StatusServiceUnavailable, 50322, "no hint available right now")
}

// DraftLessonContent asks the model to draft lesson body text for a course
// the caller owns. The draft is returned, never stored; saving it is an
// explicit CreateLesson or UpdateLesson call after teacher review.
func (c *CourseController) DraftLessonContent(ctx *gin.Context) {
	course, ok := c.ownedCourse(ctx)
	if !ok {
		return
	}

	var req struct {
		Title   string `json:"title" binding:"required,min=2,max=255"`
		Outline string `json:"outline"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40018, "invalid request payload")
		return
	}

	if c.drafts == nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50323, "drafting unavailable")
		return
	}

	dctx, cancel := services.WithDeadline(ctx.Request.Context(), 0)
	defer cancel()
	draft, err := c.drafts.DraftLesson(dctx, course.Title, strings.TrimSpace(req.Title), req.Outline)
	if err != nil {
		if errors.Is(err, services.ErrOracleUnavailable) {
			utils.Error(ctx, http.StatusServiceUnavailable, 50323, "drafting unavailable right now")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to draft lesson content")
		return
	}
	utils.Success(ctx, gin.H{"content": utils.Sanitize(draft)})
}

// CreateBadge defines an achievement on an owned course.
func (c *CourseController) CreateBadge(ctx *gin.Context) {
	course, ok := c.ownedCourse(ctx)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required,min=2,max=128"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40017, "invalid request payload")
		return
	}

	badge := models.Badge{
		CourseID:    course.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Icon:        strings.TrimSpace(req.Icon),
	}
	if err := c.db.Create(&badge).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to create badge")
		return
	}
	utils.Success(ctx, badge)
}

// ownedCourse loads the course in the :id param and verifies the caller owns it.
func (c *CourseController) ownedCourse(ctx *gin.Context) (*models.Course, bool) {
	var course models.Course
	if err := c.db.First(&course, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40415, "course not found")
		return nil, false
	}
	if course.TeacherID != middleware.CurrentUserID(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40302, "not the course owner")
		return nil, false
	}
	return &course, true
}

// ownedLesson loads the lesson in the :id param and verifies course ownership.
func (c *CourseController) ownedLesson(ctx *gin.Context) (*models.Lesson, bool) {
	var lesson models.Lesson
	if err := c.db.First(&lesson, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40413, "lesson not found")
		return nil, false
	}
	if !c.ownsCourse(ctx, lesson.CourseID) {
		return nil, false
	}
	return &lesson, true
}

func (c *CourseController) ownsCourse(ctx *gin.Context, courseID uint) bool {
	var course models.Course
	if err := c.db.First(&course, courseID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40415, "course not found")
		return false
	}
	if course.TeacherID != middleware.CurrentUserID(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40302, "not the course owner")
		return false
	}
	return true
}

func (c *CourseController) loadCourseTree(ctx *gin.Context, idStr string) (*models.Course, bool) {
	var course models.Course
	err := c.db.Preload("Topics", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Topics.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&course, idStr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40415, "course not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to load course")
		return nil, false
	}
	return &course, true
}

func (c *CourseController) invalidateCourse(courseID uint) {
	utils.InvalidateByPrefix("cache:courses:list:")
	utils.InvalidateByPrefix("cache:course:detail:" + strconv.Itoa(int(courseID)))
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
