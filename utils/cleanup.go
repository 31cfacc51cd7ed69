package utils

import (
	"os"
	"time"

	"github.com/openlearnhq/studypath/config"
	"github.com/openlearnhq/studypath/models"
)

// StartAttachmentCleaner launches a background goroutine that periodically
// deletes expired submission attachments recorded in the database. It is
// best-effort and logs failures.
func StartAttachmentCleaner(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			db := config.DB()
			if db == nil {
				continue
			}
			var items []models.Attachment
			if err := db.Where("expires_at <= ?", time.Now()).Limit(100).Find(&items).Error; err != nil {
				Sugar.Warnf("attachment cleaner query failed: %v", err)
				continue
			}
			for _, it := range items {
				if it.FilePath != "" {
					_ = os.Remove(it.FilePath)
				}
				// Remove the row regardless of file deletion outcome
				if err := db.Delete(&models.Attachment{}, it.ID).Error; err != nil {
					Sugar.Warnf("attachment cleaner delete row failed: %v", err)
				}
			}
		}
	}()
}
