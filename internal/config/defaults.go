package config

const (
	defaultDataDir                  = "~/.local/share/proctor"
	defaultLogDir                   = "~/.local/share/proctor/logs"
	defaultQueueCapacity            = 10
	defaultResultCapacity           = 10
	defaultTargetHeight             = 540
	defaultMaxFaces                 = 4
	defaultMatchThreshold           = 0.40
	defaultGazeOffsetThreshold      = 0.35
	defaultFaceCascadePath          = "~/.local/share/proctor/models/haarcascade_frontalface_default.xml"
	defaultEyeCascadePath           = "~/.local/share/proctor/models/haarcascade_eye.xml"
	defaultMaxWarnings              = 3
	defaultGracePeriodSeconds       = 30
	defaultNoFaceFrames             = 5
	defaultViolationCooldownSeconds = 10
	defaultRedisChannel             = "proctor:admin"
	defaultBroadcastTimeoutSeconds  = 5
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Analysis: Analysis{
			QueueCapacity:       defaultQueueCapacity,
			ResultCapacity:      defaultResultCapacity,
			TargetHeight:        defaultTargetHeight,
			FaceEnabled:         true,
			GazeEnabled:         true,
			FaceCascadePath:     defaultFaceCascadePath,
			EyeCascadePath:      defaultEyeCascadePath,
			MaxFaces:            defaultMaxFaces,
			MatchThreshold:      defaultMatchThreshold,
			GazeOffsetThreshold: defaultGazeOffsetThreshold,
		},
		Proctoring: Proctoring{
			MaxWarnings:              defaultMaxWarnings,
			GracePeriodSeconds:       defaultGracePeriodSeconds,
			NoFaceFrames:             defaultNoFaceFrames,
			ViolationCooldownSeconds: defaultViolationCooldownSeconds,
		},
		Broadcast: Broadcast{
			RedisChannel:   defaultRedisChannel,
			TimeoutSeconds: defaultBroadcastTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
