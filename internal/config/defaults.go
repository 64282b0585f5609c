package config

const (
	defaultDataDir         = "~/.local/share/furrow"
	defaultLogDir          = "~/.local/share/furrow/logs"
	defaultSocketPath      = "~/.local/share/furrow/furrowd.sock"
	defaultUploadTimeout   = 60
	defaultStatusTimeout   = 15
	defaultMaxAttempts     = 8
	defaultRetryDelay      = 2
	defaultRetryDelayCap   = 30
	defaultMinFreeDiskMiB  = 64
	defaultPollInterval    = 10
	defaultErrorCeiling    = 5
	defaultWatchdogMinutes = 120
	defaultProbeInterval   = 30
	defaultProbeTimeout    = 5
	defaultNotifyTimeout   = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			SocketPath: defaultSocketPath,
		},
		API: API{
			UploadTimeout: defaultUploadTimeout,
			StatusTimeout: defaultStatusTimeout,
		},
		Queue: Queue{
			MaxAttempts:    defaultMaxAttempts,
			RetryDelay:     defaultRetryDelay,
			RetryDelayCap:  defaultRetryDelayCap,
			MinFreeDiskMiB: defaultMinFreeDiskMiB,
		},
		Sync: Sync{
			PollInterval:    defaultPollInterval,
			ErrorCeiling:    defaultErrorCeiling,
			WatchdogMinutes: defaultWatchdogMinutes,
		},
		Connectivity: Connectivity{
			ProbeInterval: defaultProbeInterval,
			ProbeTimeout:  defaultProbeTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Queue:          true,
			Sync:           true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
