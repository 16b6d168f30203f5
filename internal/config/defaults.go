package config

const (
	defaultDebounceMS          = 100
	defaultCatchupLines        = 10
	defaultChunkSize           = 1024
	defaultTruncatePolicy      = "hold"
	defaultBind                = "127.0.0.1:7480"
	defaultSendBuffer          = 64
	defaultWriteTimeoutSeconds = 10
	defaultPingIntervalSeconds = 30
	defaultStateDir            = "~/.local/share/tailcast"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"

	lockFileName      = "tailcast.lock"
	daemonLogFileName = "tailcastd.log"
)

// Default returns a Config populated with repository defaults. Server.Bind is
// left empty so TAILCAST_BIND can apply before defaultBind during Load.
func Default() Config {
	return Config{
		Watch: Watch{
			DebounceMS:     defaultDebounceMS,
			CatchupLines:   defaultCatchupLines,
			ChunkSize:      defaultChunkSize,
			TruncatePolicy: defaultTruncatePolicy,
		},
		Server: Server{
			SendBuffer:          defaultSendBuffer,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
			PingIntervalSeconds: defaultPingIntervalSeconds,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
