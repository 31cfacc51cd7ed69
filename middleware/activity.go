package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openlearnhq/studypath/models"
)

// ActivityRecorder counts successful requests per day and route template.
// The counters feed the teacher dashboard's activity charts.
func ActivityRecorder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 400 {
			return
		}

		// The route template ("/api/v1/lessons/:id/complete") keeps
		// cardinality bounded; unmatched paths would explode the table.
		route := c.FullPath()
		if route == "" || route == "/health" {
			return
		}

		// Local midnight aligns with the DATE column.
		now := time.Now().In(time.Local)
		localMidnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

		// Atomic upsert so concurrent requests never hit a duplicate key.
		_ = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "route"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1"), "updated_at": time.Now()}),
		}).Create(&models.RequestStat{Date: localMidnight, Route: route, Count: 1}).Error
	}
}
