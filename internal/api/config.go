package api

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/FocuswithJustin/CedarPress/core/catalog"
)

// Config holds server configuration.
type Config struct {
	Host string
	Port int

	WorkingDir string // provisioned resources land here
	OutputDir  string // finished documents land here
	LedgerPath string // run ledger database ("" disables the ledger)

	CatalogURL string
	CatalogTTL time.Duration

	FetchTimeout time.Duration

	TypesetCommand  string // "" disables PDF generation
	TypesetEngine   string
	TypesetTemplate string

	RateLimitRequests int        // Requests per minute (0 = disabled)
	RateLimitBurst    int        // Burst size
	Auth              AuthConfig // Authentication configuration
	TLS               TLSConfig  // TLS configuration
	AllowedOrigins    []string   // CORS allowed origins (empty = allow all)
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   // Enable HTTPS
	CertFile string // Path to TLS certificate file
	KeyFile  string // Path to TLS private key file
}

// DefaultConfig returns a server configuration with working defaults
// for local use.
func DefaultConfig() Config {
	base := filepath.Join(os.TempDir(), "folio")
	return Config{
		Port:           8090,
		WorkingDir:     filepath.Join(base, "working"),
		OutputDir:      filepath.Join(base, "output"),
		LedgerPath:     filepath.Join(base, "runs.db"),
		CatalogURL:     catalog.DefaultURL,
		CatalogTTL:     time.Hour,
		FetchTimeout:   300 * time.Second,
		TypesetCommand: "pandoc",
		TypesetEngine:  "xelatex",
	}
}

// Validate checks the configuration before the server starts.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.WorkingDir == "" {
		return fmt.Errorf("working directory is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.CatalogURL == "" {
		return fmt.Errorf("catalog URL is required")
	}
	if err := ValidateAuthConfig(c.Auth); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("TLS key file not found: %w", err)
		}
	}
	return nil
}
