package main

import (
	"time"

	"github.com/openlearnhq/studypath/config"
	"github.com/openlearnhq/studypath/models"
	"github.com/openlearnhq/studypath/routes"
	"github.com/openlearnhq/studypath/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
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
		&models.Attachment{},
		&models.RequestStat{},
	)

	r := routes.SetupRouter(db)

	// Expired attachments are purged in the background, best effort.
	utils.StartAttachmentCleaner(5 * time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
