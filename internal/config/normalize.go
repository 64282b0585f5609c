package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return err
	}

	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.Connectivity.ProbeURL = strings.TrimSpace(c.Connectivity.ProbeURL)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)

	if c.Connectivity.ProbeURL == "" && c.API.BaseURL != "" {
		c.Connectivity.ProbeURL = c.API.BaseURL + "/v1/ping"
	}

	if c.API.UploadTimeout <= 0 {
		c.API.UploadTimeout = defaultUploadTimeout
	}
	if c.API.StatusTimeout <= 0 {
		c.API.StatusTimeout = defaultStatusTimeout
	}
	if c.Queue.RetryDelayCap < c.Queue.RetryDelay {
		c.Queue.RetryDelayCap = c.Queue.RetryDelay
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	return nil
}
