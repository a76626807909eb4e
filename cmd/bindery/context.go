package main

import (
	"strings"
	"sync"

	"bindery/internal/client"
	"bindery/internal/config"
)

// commandContext resolves shared command state lazily: the configuration is
// only loaded when a command actually needs the daemon address.
type commandContext struct {
	addressFlag *string
	configFlag  *string

	once sync.Once
	cfg  *config.Config
	err  error
}

func newCommandContext(addressFlag, configFlag *string) *commandContext {
	return &commandContext{addressFlag: addressFlag, configFlag: configFlag}
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	c.once.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.cfg, _, _, c.err = config.Load(path)
	})
	return c.cfg, c.err
}

// client builds an API client for the configured or overridden address.
func (c *commandContext) client() (*client.Client, error) {
	if c.addressFlag != nil && strings.TrimSpace(*c.addressFlag) != "" {
		return client.New(*c.addressFlag), nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Paths.APIBind), nil
}
