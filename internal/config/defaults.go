package config

const (
	defaultDataDir       = "~/.local/share/mocap"
	defaultIntrinsicsDir = "~/.local/share/mocap/CameraIntrinsics"
	defaultLogDir        = "~/.local/share/mocap/logs"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"

	defaultUpsampleFactor = 4
	defaultSampleCount    = 30

	defaultConfidenceThreshold      = 0.4
	defaultMaxLowConfidenceFraction = 0.5

	defaultMaxGapSeconds  = 0.2
	defaultMinValidFrames = 10

	defaultUnits = "m"

	defaultFFprobe = "ffprobe"

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 15
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			IntrinsicsDir: defaultIntrinsicsDir,
			LogDir:        defaultLogDir,
		},
		Calibration: Calibration{
			UpsampleFactor:  defaultUpsampleFactor,
			SampleCount:     defaultSampleCount,
			SaveDiagnostics: true,
		},
		Synchronization: Synchronization{
			ConfidenceThreshold: defaultConfidenceThreshold,
			// Gait-like trials keep detector jitter out of the timing signal
			// at 12 Hz; anything else falls back to frameRate/2.
			CutoffHz:                 map[string]float64{"gait": 12},
			MaxLowConfidenceFraction: defaultMaxLowConfidenceFraction,
		},
		Triangulation: Triangulation{
			MaxGapSeconds:  defaultMaxGapSeconds,
			MinValidFrames: defaultMinValidFrames,
		},
		Export: Export{
			Units:         defaultUnits,
			NeutralImages: true,
		},
		Tools: Tools{
			FFprobe: defaultFFprobe,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
