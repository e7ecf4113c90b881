package cli

var version = "dev"

// SetVersionInfo sets the version reported by the CLI and the MCP server.
func SetVersionInfo(v string) {
	version = v
}

// GetVersion returns the version set by SetVersionInfo.
func GetVersion() string {
	return version
}
