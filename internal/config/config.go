// Package config holds the settings shared by the CLI commands.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pelletier/go-toml"

	"github.com/dvcrn/modelgate-admin-client/internal/auth"
	"github.com/dvcrn/modelgate-admin-client/internal/credentials"
	"github.com/dvcrn/modelgate-admin-client/internal/rpc"
)

// Config is the connection and credential store configuration.
type Config struct {
	// BaseURL is the admin API root, including any mount prefix
	BaseURL string `name:"url" help:"Admin API base URL" default:"http://localhost:8080/api" env:"MODELGATE_URL"`

	// Store selects the credential store kind
	Store string `help:"Credential store (file, disk, memory)" default:"file" enum:"file,disk,memory" env:"MODELGATE_STORE"`

	// CredentialsPath is the credentials file for "file" or the directory for "disk"
	CredentialsPath string `name:"credentials-path" help:"Credentials file or directory" env:"MODELGATE_CREDS_PATH"`

	// RequestTimeout bounds every HTTP round-trip
	RequestTimeout time.Duration `help:"Per request timeout, 0 to disable" default:"30s" env:"MODELGATE_REQUEST_TIMEOUT"`

	// RefreshTimeout bounds a token refresh
	RefreshTimeout time.Duration `help:"Token refresh timeout" default:"30s" env:"MODELGATE_REFRESH_TIMEOUT"`
}

// CheckAndSetDefaults validates the config and fills in derived values.
func (c *Config) CheckAndSetDefaults() error {
	if c.BaseURL == "" {
		c.BaseURL = rpc.DefaultBaseURL
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("url %q must start with http:// or https://", c.BaseURL)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative, got %s", c.RequestTimeout)
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = auth.DefaultRefreshTimeout
	}

	if c.Store == "" {
		c.Store = credentials.KindFile
	}
	if c.Store == credentials.KindDisk && c.CredentialsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.CredentialsPath = filepath.Join(home, ".modelgate", "store")
	}
	return nil
}

// RPC returns the client settings.
func (c *Config) RPC() rpc.Config {
	return rpc.Config{
		BaseURL:        c.BaseURL,
		RequestTimeout: c.RequestTimeout,
		RefreshTimeout: c.RefreshTimeout,
	}
}

// OpenSession opens the configured store and wraps it in a session.
func (c *Config) OpenSession() (*credentials.Session, error) {
	store, err := credentials.Open(c.Store, c.CredentialsPath)
	if err != nil {
		return nil, err
	}
	return credentials.NewSession(store), nil
}

// TOML is the kong resolver for a TOML configuration file. A flag named
// "request-timeout" is looked up as "request-timeout" and then as the
// sectioned key "request.timeout"; the sectioned key wins.
func TOML(r io.Reader) (kong.Resolver, error) {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	var f kong.ResolverFunc = func(context *kong.Context, parent *kong.Path, flag *kong.Flag) (interface{}, error) {
		if value := tree.Get(strings.ReplaceAll(flag.Name, "-", ".")); value != nil {
			return value, nil
		}
		return tree.Get(flag.Name), nil
	}
	return f, nil
}
