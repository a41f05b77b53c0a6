package config

const (
	defaultStateDir            = "~/.local/share/canvasbridge"
	defaultLogDir              = "~/.local/share/canvasbridge/logs"
	defaultFrontendDir         = "./frontend"
	defaultOutputDumpDir       = "~/.local/share/canvasbridge/outputs"
	defaultBindHost            = "127.0.0.1"
	defaultPort                = 8765
	defaultComfyURL            = "http://127.0.0.1:8188"
	defaultComfyTimeoutSeconds = 12
	defaultForwardRetries      = 2
	defaultLogLevel            = "info"
	defaultLogFormat           = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:      defaultStateDir,
			LogDir:        defaultLogDir,
			FrontendDir:   defaultFrontendDir,
			OutputDumpDir: defaultOutputDumpDir,
		},
		Bridge: Bridge{
			BindHost:    defaultBindHost,
			Port:        defaultPort,
			AutoForward: true,
			Debug:       true,
			DumpOutputs: false,
		},
		Comfy: Comfy{
			URL:            defaultComfyURL,
			TimeoutSeconds: defaultComfyTimeoutSeconds,
			ForwardRetries: defaultForwardRetries,
			TrackProgress:  false,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
