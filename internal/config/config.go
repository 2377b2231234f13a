package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"absence-analytics/internal/cleaning"
	"absence-analytics/internal/ingest"
	"absence-analytics/internal/metrics"
	"absence-analytics/internal/models"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL string

	TelegramToken string
	TelegramDebug bool

	LogLevel logrus.Level

	MaxAbsenceDays int
	GroupingBucket models.Bucket
	OverlapPolicy  metrics.OverlapPolicy
	Columns        ingest.ColumnMapping
	ReasonAliases  map[string]models.Reason
	CalendarFile   string
}

var instance *Config
var once sync.Once

// GetConfig конфигурация процесса; при ошибке процесс завершается
func GetConfig() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			logrus.Debugf("no .env file loaded: %s", err.Error())
		}

		cfg, err := Load()
		if err != nil {
			logrus.Fatalf("invalid configuration: %s", err.Error())
		}
		instance = cfg
	})

	return instance
}

// Load читает конфигурацию из окружения
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", "absence.db"),
		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramDebug:  getEnvAsBool("TELEGRAM_DEBUG", false),
		CalendarFile:   getEnv("CALENDAR_FILE", ""),
	}

	maxDays, err := getEnvAsInt("MAX_ABSENCE_DAYS", cleaning.DefaultMaxDurationDays)
	if err != nil {
		return nil, err
	}
	cfg.MaxAbsenceDays = int(maxDays)

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, &models.ConfigurationError{Field: "LOG_LEVEL", Reason: err.Error()}
	}
	cfg.LogLevel = level

	cfg.GroupingBucket, err = models.ParseBucket(getEnv("GROUPING_BUCKET", string(models.BucketMonth)))
	if err != nil {
		return nil, err
	}

	cfg.OverlapPolicy, err = metrics.ParseOverlapPolicy(getEnv("OVERLAP_POLICY", string(metrics.OverlapCountBoth)))
	if err != nil {
		return nil, err
	}

	cfg.ReasonAliases, err = models.ParseReasonAliases(getEnv("REASON_ALIASES", ""))
	if err != nil {
		return nil, err
	}

	defaults := ingest.DefaultColumnMapping()
	cfg.Columns = ingest.ColumnMapping{
		EmployeeID:   getEnv("COLUMN_EMPLOYEE_ID", defaults.EmployeeID),
		DepartmentID: getEnv("COLUMN_DEPARTMENT_ID", defaults.DepartmentID),
		Reason:       getEnv("COLUMN_REASON", defaults.Reason),
		StartDate:    getEnv("COLUMN_START_DATE", defaults.StartDate),
		EndDate:      getEnv("COLUMN_END_DATE", defaults.EndDate),
		EmployeeName: getEnv("COLUMN_EMPLOYEE_NAME", defaults.EmployeeName),
		Supersedes:   getEnv("COLUMN_SUPERSEDES", defaults.Supersedes),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return &models.ConfigurationError{Field: "DATABASE_URL", Reason: "must not be empty"}
	}
	if err := c.CleaningRules().Validate(); err != nil {
		return err
	}
	if !c.GroupingBucket.Valid() {
		return &models.ConfigurationError{Field: "GROUPING_BUCKET", Reason: fmt.Sprintf("unsupported bucket %q", c.GroupingBucket)}
	}
	return c.Columns.Validate()
}

// CleaningRules правила очистки из настроек
func (c *Config) CleaningRules() cleaning.Rules {
	rules := cleaning.DefaultRules()
	rules.MaxDurationDays = c.MaxAbsenceDays
	if len(c.ReasonAliases) > 0 {
		rules.Reasons = models.NewReasonTable(c.ReasonAliases)
	}
	return rules
}

// NewLogger логгер компонента с уровнем из настроек
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultVal
}

// getEnvAsInt пустое или незаданное значение дает defaultVal
func getEnvAsInt(name string, defaultVal int64) (int64, error) {
	valStr := getEnv(name, "")
	if valStr == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseInt(valStr, 10, 64)
	if err != nil {
		return 0, &models.ConfigurationError{Field: name, Reason: fmt.Sprintf("not an integer: %q", valStr)}
	}

	return val, nil
}
