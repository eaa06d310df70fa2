// Package admincli implements the admin command line: sign in, review
// submissions and request exports against a running forms API.
package admincli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Auth modes.
const (
	AuthCognito = "cognito"
	AuthLocal   = "local"
)

type envConfig struct {
	APIBase         string        `env:"ADMIN_API_BASE"`
	Auth            string        `env:"ADMIN_AUTH" envDefault:"cognito"`
	SessionFile     string        `env:"ADMIN_SESSION_FILE"`
	Timeout         time.Duration `env:"ADMIN_TIMEOUT" envDefault:"15s"`
	CognitoRegion   string        `env:"COGNITO_REGION" envDefault:"us-east-1"`
	CognitoPoolID   string        `env:"COGNITO_USER_POOL_ID"`
	CognitoClientID string        `env:"COGNITO_CLIENT_ID"`
	CognitoDomain   string        `env:"COGNITO_DOMAIN"`
	LogoutRedirect  string        `env:"ADMIN_LOGOUT_REDIRECT"`
}

// Config is the parsed command line.
type Config struct {
	APIBase         string
	Auth            string
	SessionFile     string
	Timeout         time.Duration
	JSON            bool
	CognitoRegion   string
	CognitoPoolID   string
	CognitoClientID string
	CognitoDomain   string
	LogoutRedirect  string

	Command string
	Args    []string
}

// ParseConfig reads the environment, then global flags, then the subcommand and its arguments.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg := Config{
		APIBase:         e.APIBase,
		Auth:            e.Auth,
		SessionFile:     e.SessionFile,
		Timeout:         e.Timeout,
		CognitoRegion:   e.CognitoRegion,
		CognitoPoolID:   e.CognitoPoolID,
		CognitoClientID: e.CognitoClientID,
		CognitoDomain:   e.CognitoDomain,
		LogoutRedirect:  e.LogoutRedirect,
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = defaultSessionFile()
	}

	fs.StringVar(&cfg.APIBase, "api", cfg.APIBase, "forms API base URL (default: ADMIN_API_BASE)")
	fs.StringVar(&cfg.Auth, "auth", cfg.Auth, "credential provider: cognito or local")
	fs.StringVar(&cfg.SessionFile, "session", cfg.SessionFile, "session cache file")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	fs.BoolVar(&cfg.JSON, "json", false, "print JSON instead of tables")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: admin [flags] <command> [args]\n\ncommands:\n%s\nflags:\n", commandHelp)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return Config{}, errors.New("missing command")
	}
	cfg.Command = fs.Arg(0)
	cfg.Args = fs.Args()[1:]

	if cfg.Command == "hash-password" {
		return cfg, nil
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.APIBase == "" {
		return Config{}, errors.New("API base URL is required (-api or ADMIN_API_BASE)")
	}
	switch cfg.Auth {
	case AuthLocal:
	case AuthCognito:
		if cfg.CognitoClientID == "" {
			return Config{}, errors.New("COGNITO_CLIENT_ID is required with -auth cognito")
		}
	default:
		return Config{}, fmt.Errorf("unknown -auth %q", cfg.Auth)
	}
	return cfg, nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "clc-forms", "session.json")
}

const commandHelp = `  login <username>                  sign in (password from ADMIN_PASSWORD or stdin)
  logout                            revoke and forget the session
  whoami                            show the signed-in identity
  list orders|workshop              list records, newest first
  approve <orderId>                 approve a spaghetti order
  attendance <registrationId> [-absent]
                                    mark a registrant present (or absent)
  delete orders|workshop <id>       delete a record
  export orders|workshop [-wait]    request a CSV export
  export-status orders|workshop <jobId>
  hash-password                     bcrypt a password from stdin for ADMIN_USERS
`
