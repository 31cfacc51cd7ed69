package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/studypath/models"
)

func TestCompleteLessonIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db)
	_, lessons := seedCourse(t, db, "Algebra", 50, 30)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	first, err := svc.CompleteLesson(context.Background(), 7, lessons[0].ID, now)
	require.NoError(t, err)
	assert.Equal(t, 50, first.XPAwarded)
	assert.False(t, first.AlreadyCompleted)
	assert.Equal(t, 1, first.StreakLength)

	second, err := svc.CompleteLesson(context.Background(), 7, lessons[0].ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, second.XPAwarded)
	assert.True(t, second.AlreadyCompleted)

	var rows int64
	require.NoError(t, db.Model(&models.Progress{}).Where("user_id = ?", 7).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	xp, err := svc.TotalXP(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 50, xp)
}

func TestCompleteLessonUnknownLesson(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db)
	now := time.Now()

	_, err := svc.CompleteLesson(context.Background(), 7, 999, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	// The failed call must leave nothing behind.
	var progresses, days int64
	require.NoError(t, db.Model(&models.Progress{}).Count(&progresses).Error)
	require.NoError(t, db.Model(&models.StreakDay{}).Count(&days).Error)
	assert.EqualValues(t, 0, progresses)
	assert.EqualValues(t, 0, days)
}

func TestCompleteLessonSameDaySingleStreakDay(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db)
	_, lessons := seedCourse(t, db, "Geometry", 10, 10)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := svc.CompleteLesson(context.Background(), 3, lessons[0].ID, now)
	require.NoError(t, err)
	_, err = svc.CompleteLesson(context.Background(), 3, lessons[1].ID, now.Add(2*time.Hour))
	require.NoError(t, err)

	var days int64
	require.NoError(t, db.Model(&models.StreakDay{}).Where("user_id = ?", 3).Count(&days).Error)
	assert.EqualValues(t, 1, days)
}

func TestBadgeAwardedOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db)
	course, lessons := seedCourse(t, db, "History", 20, 20)
	badge := models.Badge{CourseID: course.ID, Name: "History Starter"}
	require.NoError(t, db.Create(&badge).Error)
	now := time.Now()

	first, err := svc.CompleteLesson(context.Background(), 5, lessons[0].ID, now)
	require.NoError(t, err)
	require.Len(t, first.NewBadges, 1)
	assert.Equal(t, badge.ID, first.NewBadges[0].ID)

	second, err := svc.CompleteLesson(context.Background(), 5, lessons[1].ID, now)
	require.NoError(t, err)
	assert.Empty(t, second.NewBadges)

	var awards int64
	require.NoError(t, db.Model(&models.BadgeAward{}).Where("user_id = ?", 5).Count(&awards).Error)
	assert.EqualValues(t, 1, awards)
}

func TestIsLessonUnlocked(t *testing.T) {
	ordered := []models.Lesson{{ID: 1}, {ID: 2}, {ID: 3}}

	cases := []struct {
		name      string
		lessonID  uint
		completed map[uint]bool
		want      bool
	}{
		{"first always unlocked", 1, nil, true},
		{"second locked without first", 2, nil, false},
		{"second unlocked after first", 2, map[uint]bool{1: true}, true},
		{"third locked with only first", 3, map[uint]bool{1: true}, false},
		{"third unlocked after second", 3, map[uint]bool{1: true, 2: true}, true},
		{"unknown lesson locked", 9, map[uint]bool{1: true, 2: true, 3: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsLessonUnlocked(tc.lessonID, ordered, tc.completed))
		})
	}
}

func TestNextUncompletedLesson(t *testing.T) {
	ordered := []models.Lesson{{ID: 1}, {ID: 2}, {ID: 3}}

	next := NextUncompletedLesson(ordered, nil)
	require.NotNil(t, next)
	assert.EqualValues(t, 1, next.ID)

	next = NextUncompletedLesson(ordered, map[uint]bool{1: true})
	require.NotNil(t, next)
	assert.EqualValues(t, 2, next.ID)

	assert.Nil(t, NextUncompletedLesson(ordered, map[uint]bool{1: true, 2: true, 3: true}))
}

func TestStreakLength(t *testing.T) {
	today := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	key := func(daysAgo int) string { return models.DateKey(today.AddDate(0, 0, -daysAgo)) }

	cases := []struct {
		name string
		keys []string
		want int
	}{
		{"no activity", nil, 0},
		{"today only", []string{key(0)}, 1},
		{"today and yesterday", []string{key(0), key(1)}, 2},
		{"grace: yesterday back three days", []string{key(1), key(2), key(3)}, 3},
		{"gap before today breaks the run", []string{key(0), key(2), key(3)}, 1},
		{"activity two days ago is no streak", []string{key(2), key(3)}, 0},
		{"unordered input", []string{key(1), key(0), key(2)}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StreakLength(today, tc.keys))
		})
	}
}

func TestStreakAcrossDays(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db)
	_, lessons := seedCourse(t, db, "Physics", 10, 10, 10)
	day1 := time.Date(2026, 3, 8, 20, 0, 0, 0, time.UTC)

	_, err := svc.CompleteLesson(context.Background(), 9, lessons[0].ID, day1)
	require.NoError(t, err)
	_, err = svc.CompleteLesson(context.Background(), 9, lessons[1].ID, day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	res, err := svc.CompleteLesson(context.Background(), 9, lessons[2].ID, day1.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, res.StreakLength)
}

func TestOverview(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db)
	course, lessons := seedCourse(t, db, "Chemistry", 40, 60)
	badge := models.Badge{CourseID: course.ID, Name: "Chemist"}
	require.NoError(t, db.Create(&badge).Error)
	now := time.Now()

	_, err := svc.CompleteLesson(context.Background(), 2, lessons[0].ID, now)
	require.NoError(t, err)

	ov, err := svc.Overview(context.Background(), 2, now)
	require.NoError(t, err)
	assert.Equal(t, 40, ov.TotalXP)
	assert.Equal(t, 1, ov.StreakLength)
	assert.Equal(t, 1, ov.CompletedLessons)
	require.Len(t, ov.Badges, 1)
	assert.Equal(t, "Chemist", ov.Badges[0].Badge.Name)
}

func TestCompletedLessonsScopedToCourse(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressionService(db)
	courseA, lessonsA := seedCourse(t, db, "Latin", 10)
	_, lessonsB := seedCourse(t, db, "Greek", 10)
	now := time.Now()

	_, err := svc.CompleteLesson(context.Background(), 4, lessonsA[0].ID, now)
	require.NoError(t, err)
	_, err = svc.CompleteLesson(context.Background(), 4, lessonsB[0].ID, now)
	require.NoError(t, err)

	all, err := svc.CompletedLessons(context.Background(), 4, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := svc.CompletedLessons(context.Background(), 4, courseA.ID)
	require.NoError(t, err)
	assert.Len(t, scoped, 1)
	assert.True(t, scoped[lessonsA[0].ID])
}
