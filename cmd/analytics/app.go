package main

import (
	"fmt"

	"absence-analytics/internal/cache"
	"absence-analytics/internal/cleaning"
	"absence-analytics/internal/config"
	"absence-analytics/internal/ingest"
	"absence-analytics/internal/metrics"
	"absence-analytics/internal/repository"
	"absence-analytics/internal/service"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// app собранные зависимости процесса
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	db        *gorm.DB
	analytics *service.AnalyticsService
	calendar  *service.NonWorkingDayService
}

func newApp(cfg *config.Config, adapterOpts ...ingest.Option) (*app, error) {
	log := cfg.NewLogger()

	// Инициализируем SQLite базу данных
	db, err := gorm.Open(sqlite.Open(cfg.DatabaseURL), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true, // SQLite ограничения
		Logger:                                   logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	recordRepo, err := repository.NewGormAbsenceRecordRepository(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create absence record repository: %w", err)
	}
	batchRepo, err := repository.NewGormBatchRepository(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch repository: %w", err)
	}
	directoryRepo, err := repository.NewGormDirectoryRepository(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory repository: %w", err)
	}
	dayRepo, err := repository.NewGormNonWorkingDayRepository(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create non working day repository: %w", err)
	}

	calendarService := service.NewNonWorkingDayService(dayRepo, log)
	if cfg.CalendarFile != "" {
		n, err := calendarService.LoadFromJSON(cfg.CalendarFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load calendar %s: %w", cfg.CalendarFile, err)
		}
		log.Infof("Loaded %d non working days", n)
	}
	cal, err := calendarService.Calendar()
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar: %w", err)
	}

	adapter, err := ingest.NewAdapter(cfg.Columns, append([]ingest.Option{ingest.WithLogger(log)}, adapterOpts...)...)
	if err != nil {
		return nil, err
	}
	cleaner, err := cleaning.NewCleaner(cfg.CleaningRules(), log)
	if err != nil {
		return nil, err
	}
	engine, err := metrics.NewEngine(
		metrics.WithOverlapPolicy(cfg.OverlapPolicy),
		metrics.WithCalendar(cal),
		metrics.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	analytics := service.NewAnalyticsService(recordRepo, batchRepo, directoryRepo, service.Pipeline{
		Adapter: adapter,
		Cleaner: cleaner,
		Engine:  engine,
		Cache:   cache.NewResultCache(cache.DefaultMaxEntries, log),
		Bucket:  cfg.GroupingBucket,
	}, log)

	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		analytics: analytics,
		calendar:  calendarService,
	}, nil
}

func (a *app) Close() {
	sqlDB, err := a.db.DB()
	if err != nil {
		return
	}
	// Закрываем соединение с БД
	if err := sqlDB.Close(); err != nil {
		a.log.Infof("Error closing database: %v", err)
	}
}
