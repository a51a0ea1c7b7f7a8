package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LeventeLantos/outreach-compliance/internal/compliance"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Scheduler  SchedulerConfig
	Webhook    WebhookConfig
	Compliance ComplianceConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SchedulerConfig struct {
	Interval  time.Duration
	BatchSize int
}

type WebhookConfig struct {
	URL        string
	Token      string
	Sender     string
	ContentMax int
}

type ComplianceConfig struct {
	QuietStart          compliance.Clock
	QuietEnd            compliance.Clock
	QuietStrictEnd      compliance.Clock
	StrictJurisdictions []string

	FooterWindow time.Duration
	FooterText   string

	DefaultTemplate        string
	DefaultAppointmentType string

	HelpReply   string
	OptOutReply string
}

// LoadAll reads the whole configuration from the environment and reports
// every problem at once.
func LoadAll() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	postgresURL, err := requireEnv("POSTGRES_URL")
	collect(err)
	webhookURL, err := requireEnv("WEBHOOK_URL")
	collect(err)

	contentMax, err := getEnvInt("CONTENT_MAX", compliance.DefaultMaxLength)
	collect(err)
	intervalSec, err := getEnvInt("SCHED_INTERVAL_SECONDS", 120)
	collect(err)
	batchSize, err := getEnvInt("SCHED_BATCH_SIZE", 2)
	collect(err)

	redisCfg, err := loadRedisConfig()
	collect(err)
	complianceCfg, err := loadComplianceConfig()
	collect(err)

	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: postgresURL,
		},
		Webhook: WebhookConfig{
			URL:        webhookURL,
			Token:      os.Getenv("WEBHOOK_TOKEN"),
			Sender:     os.Getenv("WEBHOOK_SENDER"),
			ContentMax: contentMax,
		},
		Scheduler: SchedulerConfig{
			Interval:  time.Duration(intervalSec) * time.Second,
			BatchSize: batchSize,
		},
		Redis:      redisCfg,
		Compliance: complianceCfg,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, err1 := getEnvInt("REDIS_DB", 0)
	ttl, err2 := getEnvInt("REDIS_TTL_SECONDS", 86400)
	if err := joinErrors([]error{err1, err2}); err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, nil
}

func loadComplianceConfig() (ComplianceConfig, error) {
	var errs []error

	clock := func(key string, def compliance.Clock) compliance.Clock {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		c, err := compliance.ParseClock(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid clock for env %s: %s", key, v))
			return def
		}
		return c
	}

	defaults := compliance.DefaultQuietHours()
	cfg := ComplianceConfig{
		QuietStart:             clock("QUIET_START", defaults.Start),
		QuietEnd:               clock("QUIET_END", defaults.End),
		QuietStrictEnd:         clock("QUIET_STRICT_END", defaults.StrictEnd),
		StrictJurisdictions:    getEnvList("QUIET_STRICT_STATES", []string{"FL", "OK"}),
		FooterText:             getEnv("FOOTER_TEXT", compliance.DefaultFooterText),
		DefaultTemplate:        getEnv("DEFAULT_TEMPLATE", compliance.DefaultTemplate),
		DefaultAppointmentType: getEnv("DEFAULT_APPOINTMENT_TYPE", compliance.DefaultAppointmentType),
		HelpReply:              getEnv("HELP_REPLY", compliance.DefaultHelpReply),
		OptOutReply:            getEnv("OPTOUT_REPLY", compliance.DefaultOptOutReply),
	}

	days, err := getEnvInt("FOOTER_WINDOW_DAYS", 30)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.FooterWindow = time.Duration(days) * 24 * time.Hour

	if len(errs) > 0 {
		return ComplianceConfig{}, joinErrors(errs)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []error
	if cfg.Scheduler.BatchSize <= 0 {
		errs = append(errs, errors.New("SCHED_BATCH_SIZE must be > 0"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Webhook.ContentMax <= 0 {
		errs = append(errs, errors.New("CONTENT_MAX must be > 0"))
	}
	if cfg.Compliance.FooterWindow <= 0 {
		errs = append(errs, errors.New("FOOTER_WINDOW_DAYS must be > 0"))
	}
	c := cfg.Compliance
	if c.QuietStart >= c.QuietEnd || c.QuietStart >= c.QuietStrictEnd {
		errs = append(errs, errors.New("QUIET_START must be before QUIET_END and QUIET_STRICT_END"))
	}
	return joinErrors(errs)
}

// Policy builds the compliance policy handed to every decision function.
func (c *Config) Policy() compliance.Policy {
	strict := make(map[string]bool, len(c.Compliance.StrictJurisdictions))
	for _, code := range c.Compliance.StrictJurisdictions {
		strict[strings.ToUpper(code)] = true
	}

	return compliance.Policy{
		QuietHours: compliance.QuietHours{
			Start:               c.Compliance.QuietStart,
			End:                 c.Compliance.QuietEnd,
			StrictEnd:           c.Compliance.QuietStrictEnd,
			StrictJurisdictions: strict,
		},
		Footer: compliance.FooterPolicy{
			Window: c.Compliance.FooterWindow,
			Text:   c.Compliance.FooterText,
		},
		Template: compliance.TemplateConfig{
			Default:                c.Compliance.DefaultTemplate,
			DefaultAppointmentType: c.Compliance.DefaultAppointmentType,
			MaxLength:              c.Webhook.ContentMax,
		},
		HelpReply:   c.Compliance.HelpReply,
		OptOutReply: c.Compliance.OptOutReply,
	}
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
