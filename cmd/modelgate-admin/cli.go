package main

import (
	"github.com/alecthomas/kong"

	"github.com/dvcrn/modelgate-admin-client/internal/config"
)

// LoginCmdConfig holds the login command options
type LoginCmdConfig struct {
	// Username is the admin account name
	Username string `arg:"true" help:"Admin username" required:"true"`

	// Password is read from stdin when empty
	Password string `help:"Admin password, read from stdin when empty" env:"MODELGATE_PASSWORD"`

	// RememberMe asks the server for a long lived refresh token
	RememberMe bool `help:"Request a long lived session"`
}

// ServeCmdConfig holds the serve command options
type ServeCmdConfig struct {
	// Addr is the listen address
	Addr string `help:"Listen address" default:":9877" env:"MODELGATE_LISTEN_ADDR"`

	// AdminKey protects every endpoint
	AdminKey string `help:"API key required by the admin endpoints" env:"ADMIN_API_KEY"`
}

// CLI represents command structure
type CLI struct {
	config.Config

	// ConfigFile is the path to configuration file
	ConfigFile kong.ConfigFlag `name:"config" help:"Path to TOML configuration file" optional:"true" type:"existingfile" env:"MODELGATE_CONFIG"`

	// Debug is a debug logging mode flag
	Debug bool `help:"Debug logging" short:"d"`

	Version struct{} `cmd:"true" help:"Print version"`

	Login LoginCmdConfig `cmd:"true" help:"Sign in and store the token pair"`

	Logout struct{} `cmd:"true" help:"Forget the stored token pair"`

	Whoami struct{} `cmd:"true" help:"Show the signed-in user"`

	Refresh struct{} `cmd:"true" help:"Exchange the refresh token for a new pair now"`

	Status struct{} `cmd:"true" help:"Show which credentials are stored"`

	Serve ServeCmdConfig `cmd:"true" help:"Serve the credential admin endpoints over HTTP"`
}
