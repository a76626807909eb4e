package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEngine()
	c.normalizeUploads()
	c.normalizeRetention()
	c.normalizeConverter()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.IncomingDir, err = expandPath(c.Paths.IncomingDir); err != nil {
		return fmt.Errorf("paths.incoming_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.DatabaseDir, err = expandPath(c.Paths.DatabaseDir); err != nil {
		return fmt.Errorf("paths.database_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeEngine() {
	if c.Engine.Workers <= 0 {
		c.Engine.Workers = defaultWorkers
	}
	if c.Engine.QueuePollInterval <= 0 {
		c.Engine.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Engine.ConversionTimeout <= 0 {
		c.Engine.ConversionTimeout = defaultConversionTimeout
	}
	if c.Engine.ProgressTickInterval <= 0 {
		c.Engine.ProgressTickInterval = defaultProgressTickInterval
	}
	if c.Engine.CancelPollInterval <= 0 {
		c.Engine.CancelPollInterval = defaultCancelPollInterval
	}
	if c.Engine.ShutdownGraceSeconds <= 0 {
		c.Engine.ShutdownGraceSeconds = defaultShutdownGrace
	}
}

func (c *Config) normalizeUploads() {
	if c.Uploads.MaxUploadMiB <= 0 {
		c.Uploads.MaxUploadMiB = defaultMaxUploadMiB
	}
	if c.Uploads.PublishInterval <= 0 {
		c.Uploads.PublishInterval = defaultUploadPublishSecs
	}
}

func (c *Config) normalizeRetention() {
	if c.Retention.EphemeralTTLHours <= 0 {
		c.Retention.EphemeralTTLHours = defaultEphemeralTTLHours
	}
	if c.Retention.SweepInterval <= 0 {
		c.Retention.SweepInterval = defaultSweepInterval
	}
	if c.Retention.AbandonedAfterSeconds <= 0 {
		c.Retention.AbandonedAfterSeconds = defaultAbandonedAfterSecs
	}
}

func (c *Config) normalizeConverter() {
	c.Converter.Binary = strings.TrimSpace(c.Converter.Binary)
	if c.Converter.Binary == "" {
		c.Converter.Binary = defaultConverterBinary
	}
	args := make([]string, 0, len(c.Converter.ExtraArgs))
	for _, arg := range c.Converter.ExtraArgs {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Converter.ExtraArgs = args
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("BINDERY_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
