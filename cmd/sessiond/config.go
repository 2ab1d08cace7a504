package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/sessionkeeper/internal/logger"
)

const (
	defaultListenAddr        = "localhost:8000"
	defaultLoggingLevel      = logger.LevelInfo
	defaultEnvironment       = logger.EnvProd
	defaultAccessTokenTTL    = 15 * time.Minute
	defaultRenewalTokenTTL   = 7 * 24 * time.Hour
	defaultRenewalMaxUses    = 10
	defaultRotationThreshold = "0.8"
	defaultTokenIssuer       = "sessionkeeper"
	defaultTokenAudience     = "sessionkeeper-api"
	defaultFailedLoginLimit  = 5
)

type Config struct {
	// Default logging level
	LogLevel string

	// Log format: text for 'dev', json for 'prod'
	Environment string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	// If empty everything is kept in memory and lost on restart
	DatabaseDSN string

	// Secret key
	// Signs access tokens and renewal token values
	SecretKey string

	// Token lifetimes
	AccessTokenTTL  time.Duration
	RenewalTokenTTL time.Duration

	// Renewals allowed per renewal token and share of them after which the token is rotated
	RenewalMaxUses    int
	RotationThreshold string

	// Fixed 'iss' and 'aud' access token claims
	TokenIssuer   string
	TokenAudience string

	// Failed logins inside a window before suspicious activity is reported
	FailedLoginLimit int
}

func NewConfig() *Config {
	return &Config{
		LogLevel:          defaultLoggingLevel,
		Environment:       defaultEnvironment,
		ListenAddr:        defaultListenAddr,
		AccessTokenTTL:    defaultAccessTokenTTL,
		RenewalTokenTTL:   defaultRenewalTokenTTL,
		RenewalMaxUses:    defaultRenewalMaxUses,
		RotationThreshold: defaultRotationThreshold,
		TokenIssuer:       defaultTokenIssuer,
		TokenAudience:     defaultTokenAudience,
		FailedLoginLimit:  defaultFailedLoginLimit,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"SECRET_KEY":         setString(&c.SecretKey),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"ACCESS_TOKEN_TTL":   setDuration(&c.AccessTokenTTL),
		"RENEWAL_TOKEN_TTL":  setDuration(&c.RenewalTokenTTL),
		"RENEWAL_MAX_USES":   setInt(&c.RenewalMaxUses),
		"ROTATION_THRESHOLD": setString(&c.RotationThreshold),
		"TOKEN_ISSUER":       setString(&c.TokenIssuer),
		"TOKEN_AUDIENCE":     setString(&c.TokenAudience),
		"FAILED_LOGIN_LIMIT": setInt(&c.FailedLoginLimit),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("sessiond", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string, in memory storage if empty")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVar(&c.RenewalTokenTTL, "renewal-ttl", c.RenewalTokenTTL, "Renewal token lifetime")
	fs.IntVar(&c.RenewalMaxUses, "renewal-max-uses", c.RenewalMaxUses, "Renewals allowed per renewal token")
	fs.StringVar(&c.RotationThreshold, "rotation-threshold", c.RotationThreshold, "Share of max uses after which renewal token is rotated, (0, 1]")
	fs.StringVar(&c.TokenIssuer, "issuer", c.TokenIssuer, "Access token issuer")
	fs.StringVar(&c.TokenAudience, "audience", c.TokenAudience, "Access token audience")
	fs.IntVar(&c.FailedLoginLimit, "failed-login-limit", c.FailedLoginLimit, "Failed logins before suspicious activity is reported")

	return fs.Parse(args)
}
