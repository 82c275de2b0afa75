package jobs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"moneybook/internal/config"
	"moneybook/internal/logger"
	"moneybook/internal/serviceiface"
)

// JobConfig holds the schedule and batch size of one nightly pass.
type JobConfig struct {
	Schedule  string
	BatchSize int
	TimeZone  string
}

// NewDefaultClassificationConfig reads the classification pass config from
// the environment, falling back to the built-in defaults.
func NewDefaultClassificationConfig() *JobConfig {
	return jobConfigFromEnv("CLASSIFICATION_SCHEDULE", config.DefaultClassifySchedule)
}

// NewDefaultTransferConfig reads the transfer pass config from the
// environment. It runs after the classification pass by default.
func NewDefaultTransferConfig() *JobConfig {
	return jobConfigFromEnv("TRANSFER_SCHEDULE", config.DefaultTransferSchedule)
}

func jobConfigFromEnv(scheduleVar, defaultSchedule string) *JobConfig {
	schedule := os.Getenv(scheduleVar)
	if schedule == "" {
		schedule = defaultSchedule
	}
	batchSize := config.ClassifyBatchSize
	if bs := os.Getenv("JOB_BATCH_SIZE"); bs != "" {
		if parsed, err := strconv.Atoi(bs); err == nil && parsed > 0 {
			batchSize = parsed
		}
	}
	return &JobConfig{
		Schedule:  schedule,
		BatchSize: batchSize,
		TimeZone:  config.DefaultTimeZone,
	}
}

// CronService owns the nightly rule passes. It satisfies the service
// interface so the app manager can start it alongside the API services.
type CronService struct {
	config map[string]interface{}
	db     *pgxpool.Pool
	crons  []*cron.Cron
}

func NewCronService(cfg map[string]interface{}, db *pgxpool.Pool) serviceiface.Service {
	return &CronService{config: cfg, db: db}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	classifyCfg := NewDefaultClassificationConfig()
	transferCfg := NewDefaultTransferConfig()

	// services.yaml overrides win over env defaults
	if s.config != nil {
		if v, ok := s.config["classification_schedule"].(string); ok && v != "" {
			classifyCfg.Schedule = v
		}
		if v, ok := s.config["transfer_schedule"].(string); ok && v != "" {
			transferCfg.Schedule = v
		}
		if v, ok := s.config["batch_size"].(int); ok && v > 0 {
			classifyCfg.BatchSize = v
			transferCfg.BatchSize = v
		}
		if v, ok := s.config["timezone"].(string); ok && v != "" {
			classifyCfg.TimeZone = v
			transferCfg.TimeZone = v
		}
	}

	c, err := s.schedule(classifyCfg, "classification", func() error {
		return ProcessUncategorizedTransactions(s.db, classifyCfg.BatchSize)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule classification pass: %w", err)
	}
	s.crons = append(s.crons, c)

	c, err = s.schedule(transferCfg, "transfer detection", func() error {
		return ProcessUndetectedTransfers(s.db, transferCfg.BatchSize)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule transfer pass: %w", err)
	}
	s.crons = append(s.crons, c)

	log.Printf("[AUDIT] cron service started: classification %q, transfers %q (%s)",
		classifyCfg.Schedule, transferCfg.Schedule, classifyCfg.TimeZone)
	return nil
}

func (s *CronService) schedule(cfg *JobConfig, name string, run func() error) (*cron.Cron, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
		logger.Audit(fmt.Sprintf("invalid timezone %s, falling back to UTC: %v", cfg.TimeZone, err))
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Schedule, func() {
		logger.Audit(fmt.Sprintf("starting %s pass at %s", name, time.Now().In(loc).Format(time.RFC3339)))
		if err := run(); err != nil {
			logger.Audit(fmt.Sprintf("%s pass failed: %v", name, err))
			log.Printf("ERROR: %s pass failed: %v", name, err)
			return
		}
		logger.Audit(fmt.Sprintf("%s pass completed", name))
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func (s *CronService) Stop() error {
	for _, c := range s.crons {
		c.Stop()
	}
	s.crons = nil
	log.Println("Cron service stopped.")
	return nil
}
