package config

const (
	defaultBundledDir            = "~/.local/share/mediabridge/worker"
	defaultScript                = "~/.local/share/mediabridge/worker/main.py"
	defaultInterpreter           = "python3"
	defaultMediaDir              = "~/media"
	defaultLogDir                = "~/.local/share/mediabridge/logs"
	defaultHistoryDB             = "~/.local/share/mediabridge/history.db"
	defaultRuntimeDir            = "~/.local/share/mediabridge/run"
	defaultMaxRestarts           = 3
	defaultRestartBackoffSeconds = 2
	defaultMaxLineKiB            = 1024
	defaultHandshakeSeconds      = 10
	defaultCommandSeconds        = 300
	defaultShutdownGraceSeconds  = 5
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"

	// Sizing assumptions for DefaultWorkerCount. Each worker holds a media
	// toolchain in memory, so budget two logical CPUs and two GiB per worker.
	workerCPUShare = 2
	workerMemShare = 2 << 30
	maxAutoWorkers = 8
	minAutoWorkers = 1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Worker: Worker{
			BundledDir:  defaultBundledDir,
			Script:      defaultScript,
			Interpreter: defaultInterpreter,
		},
		Pool: Pool{
			MaxRestarts:           defaultMaxRestarts,
			RestartBackoffSeconds: defaultRestartBackoffSeconds,
			MaxLineKiB:            defaultMaxLineKiB,
		},
		Timeouts: Timeouts{
			Handshake:     defaultHandshakeSeconds,
			Command:       defaultCommandSeconds,
			ShutdownGrace: defaultShutdownGraceSeconds,
		},
		Paths: Paths{
			MediaDir:   defaultMediaDir,
			LogDir:     defaultLogDir,
			HistoryDB:  defaultHistoryDB,
			RuntimeDir: defaultRuntimeDir,
		},
		Subtitles: Subtitles{
			Languages: []string{"en"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultWorkerCount derives a pool size from the host's logical CPU count
// and physical memory. It is a pure function so callers can compute the
// value once at construction and pass it in explicitly.
func DefaultWorkerCount(numCPU int, memBytes uint64) int {
	byCPU := numCPU / workerCPUShare
	byMem := int(memBytes / workerMemShare)

	count := byCPU
	if byMem < count {
		count = byMem
	}
	if count < minAutoWorkers {
		count = minAutoWorkers
	}
	if count > maxAutoWorkers {
		count = maxAutoWorkers
	}
	return count
}
