package server

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/store"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/phantombuster"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

// Scheduler fires enabled autopost schedules on their cron spec. Schedule
// rows never carry credentials; the publish credentials come from the host
// environment at fire time, and schedules without them are skipped.
type Scheduler struct {
	Store   *store.Store
	Stop    chan struct{}
	Rdb     *redis.Client
	Scraper *phantombuster.Client
	Cfg     config.SchedulerConfig
	Logger  *log.Logger
}

func NewScheduler(st *store.Store, rdb *redis.Client, scraper *phantombuster.Client, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		Store:   st,
		Stop:    make(chan struct{}),
		Rdb:     rdb,
		Scraper: scraper,
		Cfg:     cfg.Normalize(),
		Logger:  log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.Cfg.TickInterval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	schedules, err := s.Store.ListEnabledSchedules(ctx)
	if err != nil {
		s.Logger.Printf("list schedules: %v", err)
		return
	}
	creds, ok := envPublishCredentials()
	for _, sc := range schedules {
		if !isDue(sc.CronSpec, sc.LastTriggered) {
			continue
		}
		if !ok {
			s.Logger.Printf("schedule %s due but publish credentials not set, skipping", sc.ID)
			continue
		}

		// distributed lock to avoid duplicate firing; it expires on its own
		// so a crashed worker cannot wedge the schedule
		if s.Rdb != nil {
			lockKey := "sched:lock:" + sc.ID
			acquired, _ := s.Rdb.SetNX(ctx, lockKey, "1", s.Cfg.LockTTL).Result()
			if !acquired {
				continue
			}
		}

		go func(sc models.AutopostSchedule) {
			// jitter to avoid stampedes
			time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)
			containerID, err := s.Scraper.Autopost(ctx, creds, sc.SheetURL)
			if err != nil {
				s.Logger.Printf("schedule %s autopost: %v", sc.ID, err)
				return
			}
			s.Logger.Printf("schedule %s fired, container %s", sc.ID, containerID)
			if err := s.Store.TouchSchedule(ctx, sc.ID, time.Now()); err != nil {
				s.Logger.Printf("schedule %s touch: %v", sc.ID, err)
			}
		}(sc)
	}
}

// envPublishCredentials reads the autopost credentials from the environment.
// They are intentionally not persisted with the schedule rows.
func envPublishCredentials() (phantombuster.Credentials, bool) {
	creds := phantombuster.Credentials{
		APIKey:        os.Getenv("PHANTOMBUSTER_API_KEY"),
		SessionCookie: os.Getenv("LINKEDIN_SESSION_COOKIE"),
		UserAgent:     os.Getenv("LINKEDIN_USER_AGENT"),
	}
	return creds, creds.APIKey != "" && creds.SessionCookie != ""
}

// isDue determines if a schedule with cronSpec should fire now based on the
// last firing time. Supports "@daily", "@hourly", and standard 5-field cron
// expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Fallback: treat as @daily if invalid
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			// If never fired, due now
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
