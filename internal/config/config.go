package config

import (
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const envPrefix = "CRM"

// Config is read once at startup and handed to constructors.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8000"`
	GRPCAddr string `envconfig:"GRPC_ADDR" default:":50051"`

	MySQLDSN        string        `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/crm?parseTime=true"`
	MySQLMaxOpen    int           `envconfig:"MYSQL_MAX_OPEN" default:"20"`
	MySQLMaxIdle    int           `envconfig:"MYSQL_MAX_IDLE" default:"10"`
	MySQLConnMaxAge time.Duration `envconfig:"MYSQL_CONN_MAX_AGE" default:"5m"`

	RedisAddr string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int           `envconfig:"REDIS_DB" default:"0"`
	QueueName string        `envconfig:"QUEUE_NAME" default:"crm:tasks"`
	DedupeTTL time.Duration `envconfig:"DEDUPE_TTL" default:"1h"`

	// GraphQLURL is the endpoint jobs call, the same one external clients use.
	GraphQLURL string `envconfig:"GRAPHQL_URL" default:"http://localhost:8000/graphql"`
	// HealthGRPCAddr is probed by the heartbeat job when set.
	HealthGRPCAddr string `envconfig:"HEALTH_GRPC_ADDR" default:"localhost:50051"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	JobLogDir string `envconfig:"JOB_LOG_DIR" default:"/tmp"`

	WorkerCount  int           `envconfig:"WORKER_COUNT" default:"4"`
	TaskTimeout  time.Duration `envconfig:"TASK_TIMEOUT" default:"30s"`
	PollTimeout  time.Duration `envconfig:"POLL_TIMEOUT" default:"2s"`
	HealthPeriod time.Duration `envconfig:"HEALTH_PERIOD" default:"10s"`

	Schedule Schedule
}

// Schedule holds standard five-field cron specs for each job, read from
// CRM_SCHEDULE_<JOB>.
type Schedule struct {
	Heartbeat string `envconfig:"HEARTBEAT" default:"*/5 * * * *"`
	LowStock  string `envconfig:"LOW_STOCK" default:"0 */12 * * *"`
	Report    string `envconfig:"REPORT" default:"0 6 * * 1"`
	Reminders string `envconfig:"REMINDERS" default:"0 8 * * *"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "process env")
	}
	if cfg.WorkerCount <= 0 {
		return Config{}, errors.Errorf("worker count must be positive, got %d", cfg.WorkerCount)
	}
	return cfg, nil
}

// JobLogPath resolves a job log file name inside JobLogDir.
func (c Config) JobLogPath(name string) string {
	return filepath.Join(c.JobLogDir, name)
}

// NewLogger builds the process logger from the log settings.
func (c Config) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "parse log level")
	}
	logger.SetLevel(level)

	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("unknown log format %q", c.LogFormat)
	}
	return logger, nil
}
