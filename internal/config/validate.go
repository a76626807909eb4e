package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateUploads(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.IncomingDir) == "" {
		return errors.New("paths.incoming_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DatabaseDir) == "" {
		return errors.New("paths.database_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q is not host:port: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.Workers > 64 {
		return fmt.Errorf("engine.workers %d exceeds the maximum of 64", c.Engine.Workers)
	}
	return nil
}

func (c *Config) validateUploads() error {
	if c.Uploads.MaxUploadMiB > 64*1024 {
		return fmt.Errorf("uploads.max_upload_mib %d exceeds the maximum of 65536", c.Uploads.MaxUploadMiB)
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.AbandonedAfterSeconds < 60 {
		return errors.New("retention.abandoned_after_seconds must be at least 60")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}
