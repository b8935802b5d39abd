package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	configPath string
	mcp        bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfigFile records where the configuration was loaded from so the
// application can watch it for relay list changes.
func WithConfigFile(path string) Option {
	return func(a *application) {
		a.configPath = path
	}
}

// WithMCP switches the application into MCP stdio mode instead of serving
// HTTP.
func WithMCP(enabled bool) Option {
	return func(a *application) {
		a.mcp = enabled
	}
}
