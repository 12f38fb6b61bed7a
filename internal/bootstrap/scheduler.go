package bootstrap

import (
	"fmt"

	"github.com/studypets/studypets-core/internal/infrastructure/scheduler"
	"github.com/studypets/studypets-core/internal/infrastructure/scheduler/jobs"
	"github.com/studypets/studypets-core/pkg/logger"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// NewScheduler registers the background jobs on a scheduler running in the
// platform timezone.
func NewScheduler(infra *Infra, app *Application) (*scheduler.Scheduler, error) {
	cfg := infra.Config.Scheduler
	log := infra.Logger.With(logger.Component("scheduler"))

	sched := scheduler.New(scheduler.Config{
		Logger:   log,
		Clock:    infra.Clock,
		Location: timeutil.PlatformTZ,
	})

	weekly, err := scheduler.ParseCronExpression(cfg.WeeklyRewardsCron)
	if err != nil {
		return nil, fmt.Errorf("weekly rewards schedule: %w", err)
	}
	job := jobs.NewDistributeWeeklyRewardsJob(app.DistributeRewards, infra.Clock, cfg.JobTimeout, log)
	if err := sched.Register(job, weekly); err != nil {
		return nil, fmt.Errorf("register %s: %w", job.Name(), err)
	}

	return sched, nil
}
