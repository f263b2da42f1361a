package config

import (
	"time"

	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultSocketName      = "fieldstore.sock"

	DefaultDataDir    = "/var/lib/fieldstore/data"
	DefaultGCInterval = 10 * time.Minute

	DefaultMemTableSize int64 = 256 << 20
	MinMemTableSize     int64 = 16 << 20

	DefaultKeepEvents    = 10 * time.Minute
	DefaultSweepInterval = time.Hour

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
			Socket: SocketConfig{
				Enabled: true,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Storage: StorageSection{
			DataDir:      DefaultDataDir,
			SyncWrites:   true,
			GCInterval:   DefaultGCInterval,
			MemTableSize: DefaultMemTableSize,
		},
		Clock: ClockSection{
			Timezone: tzclock.DefaultTimezone,
		},
		Notify: NotifySection{
			Enabled:    true,
			KeepEvents: DefaultKeepEvents,
		},
		Sweep: SweepSection{
			Interval: DefaultSweepInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
