package cli

import (
	"os"

	"github.com/hexhold/hexhold/internal/client/identity"
)

// Config holds CLI configuration
type Config struct {
	ServerURL    string
	IdentityFile string
	Verbose      bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	identityFile := os.Getenv("HEXHOLD_IDENTITY_FILE")
	if identityFile == "" {
		if path, err := identity.DefaultPath(); err == nil {
			identityFile = path
		} else {
			identityFile = ".hexhold/identity.json"
		}
	}

	return &Config{
		ServerURL:    getEnvOrDefault("HEXHOLD_SERVER", "ws://localhost:8080/ws"),
		IdentityFile: identityFile,
		Verbose:      false,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
