package config

import (
	"os"
	"strconv"
)

// FromEnv overlays FLOWATCH_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("FLOWATCH_DATA_DIR", &cfg.DataDir)
	str("FLOWATCH_WORK_DIR", &cfg.WorkDir)
	str("FLOWATCH_FSYNC", &cfg.Fsync)
	num("FLOWATCH_FSYNC_INTERVAL_MS", &cfg.FsyncIntervalMs)
	str("FLOWATCH_BOOKMARK_BACKEND", &cfg.Bookmark.Backend)
	str("FLOWATCH_BOOKMARK_LOCATION", &cfg.Bookmark.Location)
	str("FLOWATCH_SUBSCRIPTION_TAG", &cfg.Subscription.Tag)
	num("FLOWATCH_SUBSCRIPTION_ERROR_BUFFER", &cfg.Subscription.ErrorBuffer)
	num("FLOWATCH_EVENTLOG_BATCH_SIZE", &cfg.EventLog.BatchSize)
	num("FLOWATCH_EVENTLOG_IDLE_WAIT_MS", &cfg.EventLog.IdleWaitMs)
	num("FLOWATCH_FILESOURCE_POLL_INTERVAL_MS", &cfg.FileSource.PollIntervalMs)
	str("FLOWATCH_LOG_LEVEL", &cfg.Log.Level)
	str("FLOWATCH_LOG_FORMAT", &cfg.Log.Format)
	str("FLOWATCH_METRICS_ADDR", &cfg.MetricsAddr)
}
