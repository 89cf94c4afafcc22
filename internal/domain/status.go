package domain

// RelayState is the lifecycle state of the relay process.
type RelayState string

const (
	StateStarting     RelayState = "starting"
	StateRunning      RelayState = "running"
	StateShuttingDown RelayState = "shutting_down"
	StateStopped      RelayState = "stopped"
)

// RelayStatus is the snapshot served by the admin status endpoint.
type RelayStatus struct {
	State                 RelayState `json:"state"`
	LogConnections        int        `json:"log_connections"`
	ScreenshotConnections int        `json:"screenshot_connections"`
	LinesReceived         uint64     `json:"lines_received"`
	ScreenshotsSaved      uint64     `json:"screenshots_saved"`
	CurrentLogPath        string     `json:"current_log_path,omitempty"`
}
