package api

import (
	"time"

	"github.com/FocuswithJustin/xrefgraph/core/errors"
	"github.com/FocuswithJustin/xrefgraph/internal/pipeline"
)

// Config holds server configuration.
type Config struct {
	Port int

	// Dir holds the artifacts being served; rebuild jobs write into it.
	Dir string

	// DataDir is where job requests may name input files. Empty restricts
	// jobs to Build.Input.
	DataDir string

	// Build is the template for rebuild jobs. OutDir is always Dir.
	Build pipeline.Config

	// Watch reloads artifacts when files in Dir change.
	Watch bool

	RateLimitRequests int // requests per minute, 0 disables
	RateLimitBurst    int
	Auth              AuthConfig
	TLS               TLSConfig
	AllowedOrigins    []string // CORS and WebSocket origins, empty allows all

	ShutdownTimeout time.Duration
	Version         string
}

// TLSConfig holds TLS configuration.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Build.GraphName == "" {
		c.Build.GraphName = pipeline.DefaultGraphName
	}
	if c.Build.StatsName == "" {
		c.Build.StatsName = pipeline.DefaultStatsName
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.RateLimitRequests > 0 && c.RateLimitBurst == 0 {
		c.RateLimitBurst = 10
	}
	c.Build.OutDir = c.Dir
}

// Validate applies defaults and checks the configuration.
func (c *Config) Validate() error {
	c.setDefaults()
	if c.Dir == "" {
		return errors.NewValidation("dir", "an artifact directory is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.NewValidation("port", "must be between 0 and 65535")
	}
	if err := ValidateAuthConfig(c.Auth); err != nil {
		return errors.NewValidation("api-key", err.Error())
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return errors.NewValidation("tls", "cert and key files are required when TLS is enabled")
	}
	return nil
}
