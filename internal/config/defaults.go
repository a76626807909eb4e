package config

const (
	defaultIncomingDir = "~/.local/share/bindery/incoming"
	defaultWorkDir     = "~/.local/share/bindery/work"
	defaultOutputDir   = "~/.local/share/bindery/output"
	defaultLogDir      = "~/.local/share/bindery/logs"
	defaultDatabaseDir = "~/.local/share/bindery/db"
	defaultAPIBind     = "127.0.0.1:7575"

	defaultWorkers              = 2
	defaultQueuePollInterval    = 2
	defaultConversionTimeout    = 3600
	defaultProgressTickInterval = 1
	defaultCancelPollInterval   = 1
	defaultShutdownGrace        = 30

	defaultMaxUploadMiB        = 2048
	defaultUploadPublishSecs   = 5
	defaultEphemeralTTLHours   = 24
	defaultSweepInterval       = 300
	defaultAbandonedAfterSecs  = 3600
	defaultConverterBinary     = "kcc-c2e"
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IncomingDir: defaultIncomingDir,
			WorkDir:     defaultWorkDir,
			OutputDir:   defaultOutputDir,
			LogDir:      defaultLogDir,
			DatabaseDir: defaultDatabaseDir,
			APIBind:     defaultAPIBind,
		},
		Engine: Engine{
			Workers:              defaultWorkers,
			QueuePollInterval:    defaultQueuePollInterval,
			ConversionTimeout:    defaultConversionTimeout,
			ProgressTickInterval: defaultProgressTickInterval,
			CancelPollInterval:   defaultCancelPollInterval,
			ShutdownGraceSeconds: defaultShutdownGrace,
		},
		Uploads: Uploads{
			MaxUploadMiB:    defaultMaxUploadMiB,
			PublishInterval: defaultUploadPublishSecs,
		},
		Retention: Retention{
			EphemeralTTLHours:     defaultEphemeralTTLHours,
			SweepInterval:         defaultSweepInterval,
			AbandonedAfterSeconds: defaultAbandonedAfterSecs,
		},
		Converter: Converter{
			Binary: defaultConverterBinary,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Complete:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
