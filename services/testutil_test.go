package services

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openlearnhq/studypath/models"
)

// newTestDB opens an isolated in-memory database per test with the same
// error translation the production MySQL handle uses, so duplicate-key
// detection behaves identically.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Topic{},
		&models.Lesson{},
		&models.Question{},
		&models.Progress{},
		&models.StreakDay{},
		&models.Badge{},
		&models.BadgeAward{},
		&models.Assignment{},
		&models.Submission{},
		&models.DailyChallenge{},
		&models.ChallengeComment{},
		&models.ChallengeSubmission{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// seedCourse creates a course with one topic and the given lessons in order,
// returning the persisted lessons.
func seedCourse(t *testing.T, db *gorm.DB, title string, xps ...int) (models.Course, []models.Lesson) {
	t.Helper()

	course := models.Course{TeacherID: 1, Title: title}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	topic := models.Topic{CourseID: course.ID, Title: title + " basics", Position: 0}
	if err := db.Create(&topic).Error; err != nil {
		t.Fatalf("seed topic: %v", err)
	}

	lessons := make([]models.Lesson, 0, len(xps))
	for i, xp := range xps {
		lesson := models.Lesson{
			CourseID: course.ID,
			TopicID:  topic.ID,
			Title:    fmt.Sprintf("%s lesson %d", title, i+1),
			XP:       xp,
			Position: i,
		}
		if err := db.Create(&lesson).Error; err != nil {
			t.Fatalf("seed lesson: %v", err)
		}
		lessons = append(lessons, lesson)
	}
	return course, lessons
}
