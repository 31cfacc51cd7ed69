package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openlearnhq/studypath/models"
)

// ProgressionService records lesson completions and derives the gamification
// state that hangs off them: XP totals, streaks, badges, unlock sequencing.
type ProgressionService struct {
	db *gorm.DB
}

// NewProgressionService creates a progression service on the given handle.
func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{db: db}
}

// CompletionResult reports what a CompleteLesson call actually changed.
type CompletionResult struct {
	LessonID         uint           `json:"lesson_id"`
	XPAwarded        int            `json:"xp_awarded"`
	AlreadyCompleted bool           `json:"already_completed"`
	StreakLength     int            `json:"streak_length"`
	NewBadges        []models.Badge `json:"new_badges,omitempty"`
}

// CompleteLesson records a lesson completion for a user inside one
// transaction: the progress row, the streak day, and any badge awards the
// completion newly qualifies. Every insert uses insert-if-absent semantics,
// so the operation is idempotent and safe to retry; XP is never credited
// twice. Any failure rolls the whole sequence back.
func (s *ProgressionService) CompleteLesson(ctx context.Context, userID, lessonID uint, now time.Time) (*CompletionResult, error) {
	res := &CompletionResult{LessonID: lessonID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lesson models.Lesson
		if err := tx.First(&lesson, lessonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: lesson %d", ErrNotFound, lessonID)
			}
			return err
		}

		progress := models.Progress{
			UserID:      userID,
			LessonID:    lessonID,
			XPEarned:    lesson.XP,
			CompletedAt: now,
		}
		r := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&progress)
		if r.Error != nil {
			return r.Error
		}
		if r.RowsAffected == 0 {
			res.AlreadyCompleted = true
		} else {
			res.XPAwarded = lesson.XP
		}

		day := models.StreakDay{UserID: userID, DateKey: models.DateKey(now)}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&day).Error; err != nil {
			return err
		}

		return s.awardCourseBadges(tx, userID, lesson.CourseID, now, res)
	})
	if err != nil {
		return nil, err
	}

	streak, err := s.CurrentStreak(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	res.StreakLength = streak
	return res, nil
}

// awardCourseBadges inserts awards for every badge of the course the user
// now qualifies for. Qualification is at least one completed lesson in the
// badge's course; the unique (user, badge) index keeps awards idempotent.
func (s *ProgressionService) awardCourseBadges(tx *gorm.DB, userID, courseID uint, now time.Time, res *CompletionResult) error {
	var badges []models.Badge
	if err := tx.Where("course_id = ?", courseID).Find(&badges).Error; err != nil {
		return err
	}

	for _, badge := range badges {
		var completed int64
		err := tx.Model(&models.Progress{}).
			Joins("JOIN lessons ON lessons.id = progresses.lesson_id").
			Where("progresses.user_id = ? AND lessons.course_id = ?", userID, badge.CourseID).
			Count(&completed).Error
		if err != nil {
			return err
		}
		if completed == 0 {
			continue
		}

		award := models.BadgeAward{UserID: userID, BadgeID: badge.ID, AwardedAt: now}
		r := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&award)
		if r.Error != nil {
			return r.Error
		}
		if r.RowsAffected > 0 {
			res.NewBadges = append(res.NewBadges, badge)
		}
	}
	return nil
}

// IsLessonUnlocked reports whether a lesson is reachable for a user, given
// the course's lessons in authored order and the set of completed lesson
// ids. Pure function over already-fetched state: the first lesson is always
// unlocked, every later one requires the immediately preceding lesson to be
// completed. A lesson not present in the list is locked.
func IsLessonUnlocked(lessonID uint, ordered []models.Lesson, completed map[uint]bool) bool {
	for i, lesson := range ordered {
		if lesson.ID != lessonID {
			continue
		}
		if i == 0 {
			return true
		}
		return completed[ordered[i-1].ID]
	}
	return false
}

// NextUncompletedLesson returns the first lesson in authored order that is
// unlocked but not yet completed, or nil when the course is finished.
func NextUncompletedLesson(ordered []models.Lesson, completed map[uint]bool) *models.Lesson {
	for i := range ordered {
		if completed[ordered[i].ID] {
			continue
		}
		if IsLessonUnlocked(ordered[i].ID, ordered, completed) {
			return &ordered[i]
		}
		return nil
	}
	return nil
}

// StreakLength derives the current streak from the set of recorded date
// keys: walk backward one calendar day at a time counting matches. When
// today has no record yet the walk starts from yesterday, so a streak
// survives until the user's next qualifying action. Gaps terminate the walk.
func StreakLength(today time.Time, dateKeys []string) int {
	set := make(map[string]struct{}, len(dateKeys))
	for _, k := range dateKeys {
		set[k] = struct{}{}
	}

	day := today
	if _, ok := set[models.DateKey(day)]; !ok {
		day = day.AddDate(0, 0, -1)
		if _, ok := set[models.DateKey(day)]; !ok {
			return 0
		}
	}

	length := 0
	for {
		if _, ok := set[models.DateKey(day)]; !ok {
			return length
		}
		length++
		day = day.AddDate(0, 0, -1)
	}
}

// CurrentStreak loads the user's streak days and derives the streak length
// ending at now (or yesterday, per the one-day grace).
func (s *ProgressionService) CurrentStreak(ctx context.Context, userID uint, now time.Time) (int, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&models.StreakDay{}).
		Where("user_id = ?", userID).
		Pluck("date_key", &keys).Error
	if err != nil {
		return 0, err
	}
	return StreakLength(now, keys), nil
}

// TotalXP sums the XP credited across all completed lessons.
func (s *ProgressionService) TotalXP(ctx context.Context, userID uint) (int, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Progress{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(xp_earned), 0)").
		Scan(&total).Error
	return int(total), err
}

// CompletedLessons returns the set of lesson ids the user has completed,
// optionally restricted to one course (courseID 0 means all).
func (s *ProgressionService) CompletedLessons(ctx context.Context, userID, courseID uint) (map[uint]bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Progress{}).Where("progresses.user_id = ?", userID)
	if courseID != 0 {
		q = q.Joins("JOIN lessons ON lessons.id = progresses.lesson_id").
			Where("lessons.course_id = ?", courseID)
	}
	var ids []uint
	if err := q.Pluck("progresses.lesson_id", &ids).Error; err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// Overview aggregates the numbers shown on a student dashboard.
type Overview struct {
	TotalXP          int                 `json:"total_xp"`
	StreakLength     int                 `json:"streak_length"`
	CompletedLessons int                 `json:"completed_lessons"`
	Badges           []models.BadgeAward `json:"badges"`
}

// Overview loads XP, streak, completion count and badge awards for a user.
func (s *ProgressionService) Overview(ctx context.Context, userID uint, now time.Time) (*Overview, error) {
	xp, err := s.TotalXP(ctx, userID)
	if err != nil {
		return nil, err
	}
	streak, err := s.CurrentStreak(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	var completed int64
	if err := s.db.WithContext(ctx).Model(&models.Progress{}).
		Where("user_id = ?", userID).Count(&completed).Error; err != nil {
		return nil, err
	}

	var awards []models.BadgeAward
	if err := s.db.WithContext(ctx).Preload("Badge").
		Where("user_id = ?", userID).
		Order("awarded_at DESC").
		Find(&awards).Error; err != nil {
		return nil, err
	}

	return &Overview{
		TotalXP:          xp,
		StreakLength:     streak,
		CompletedLessons: int(completed),
		Badges:           awards,
	}, nil
}

// OrderedLessons flattens a course's lessons into authored order: topics by
// position, then lessons by position within each topic.
func OrderedLessons(course *models.Course) []models.Lesson {
	var out []models.Lesson
	for _, topic := range course.Topics {
		out = append(out, topic.Lessons...)
	}
	return out
}
