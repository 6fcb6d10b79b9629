package tools

// Status captures the resolved state of an external tool.
type Status struct {
	Tool      string   `json:"tool"`
	Version   string   `json:"version,omitempty"`
	Minimum   string   `json:"minimum,omitempty"`
	Path      string   `json:"path,omitempty"`
	Satisfied bool     `json:"satisfied"`
	Error     string   `json:"error,omitempty"`
	Notes     []string `json:"notes,omitempty"`
}

// ToolDefinition describes how to locate and version an executable.
type ToolDefinition struct {
	Name           string
	Executable     string
	VersionSwitch  string
	MinimumVersion string
	// Optional tools are reported but never fail Require.
	Optional bool
}

// Overrides replaces default executable names or paths.
type Overrides struct {
	FFmpeg      string
	FFprobe     string
	Interpreter string
}
