package config

const (
	defaultConfigPath     = "~/.config/grila/config.toml"
	defaultDataDir        = "~/.local/share/grila"
	defaultAPIBind        = "127.0.0.1:7510"
	defaultWorkerCommand  = "python3"
	defaultWorkerScript   = "verificareGrila.py"
	defaultWorkerTimeout  = 120
	defaultMaxConcurrency = 4
	defaultMaxBatchFiles  = 30
	defaultTestTitle      = "Test Grilă"
	defaultMaxUploadBytes = 10 * 1024 * 1024
	defaultRecentCount    = 5
	defaultPageSize       = 20
	defaultMaxPageSize    = 100
	defaultBusyRetries    = 5
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultSQLiteFileName = "results.db"
	defaultUploadSubdir   = "uploads"
	defaultLogSubdir      = "logs"
	defaultNtfyTimeout    = 10
	envAPIToken           = "GRILA_API_TOKEN"
	envPostgresDSN        = "GRILA_POSTGRES_DSN"
	envWorkerCommand      = "GRILA_WORKER_COMMAND"
)

// Supported result store drivers.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// Default returns a Config populated with repository defaults. Directory fields
// derived from data_dir stay empty here and are filled in by normalize.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		Worker: Worker{
			Command:        defaultWorkerCommand,
			Args:           []string{defaultWorkerScript},
			TimeoutSeconds: defaultWorkerTimeout,
			ValidateOutput: true,
		},
		Grading: Grading{
			MaxConcurrency:  defaultMaxConcurrency,
			MaxBatchFiles:   defaultMaxBatchFiles,
			DefaultTitle:    defaultTestTitle,
			MaxUploadBytes:  defaultMaxUploadBytes,
			RecentCount:     defaultRecentCount,
			DefaultPageSize: defaultPageSize,
			MaxPageSize:     defaultMaxPageSize,
		},
		Store: Store{
			Driver:            StoreDriverSQLite,
			BusyRetryAttempts: defaultBusyRetries,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
		},
	}
}
