package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if c.Paths.SocketPath == "" {
		return errors.New("paths.socket_path must be set")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/furrow/config.toml"
		}
		return fmt.Errorf("api.base_url is required. Edit %s (create with 'furrow config init')", defaultPath)
	}
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url is not a valid URL: %w", err)
	}
	if c.API.Token == "" {
		return errors.New("api.token is required")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxAttempts < 1 {
		return errors.New("queue.max_attempts must be at least 1")
	}
	if c.Queue.RetryDelay < 0 {
		return errors.New("queue.retry_delay must not be negative")
	}
	if c.Queue.MinFreeDiskMiB < 0 {
		return errors.New("queue.min_free_disk_mib must not be negative")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.PollInterval < 1 {
		return errors.New("sync.poll_interval must be at least 1 second")
	}
	if c.Sync.ErrorCeiling < 1 {
		return errors.New("sync.error_ceiling must be at least 1")
	}
	if c.Sync.WatchdogMinutes < 1 {
		return errors.New("sync.watchdog_minutes must be at least 1")
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	if c.Connectivity.ProbeInterval < 1 {
		return errors.New("connectivity.probe_interval must be at least 1 second")
	}
	if c.Connectivity.ProbeTimeout < 1 {
		return errors.New("connectivity.probe_timeout must be at least 1 second")
	}
	return nil
}
