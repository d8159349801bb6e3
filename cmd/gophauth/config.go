package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/gophauth/internal/logger"
)

const (
	defaultListenAddr          = "localhost:8000"
	defaultLoggingLevel        = logger.LevelInfo
	defaultEnvironment         = logger.EnvProduction
	defaultTokenIssuer         = "gophauth"
	defaultTokenAudience       = "gophauth"
	defaultAccessTokenTTLMin   = 15
	defaultRefreshTokenTTLDays = 7
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the gophauth service will be run
	ListenAddr string

	// Secret key
	// Access token signing uses symmetric encryption, so this key is used for that purpose.
	// Required: the service refuses to start without it
	SecretKey string

	// Issuer and audience stamped into access tokens
	TokenIssuer   string
	TokenAudience string

	// Token lifetimes
	AccessTokenTTLMin   int
	RefreshTokenTTLDays int

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:            defaultLoggingLevel,
		ListenAddr:          defaultListenAddr,
		Environment:         defaultEnvironment,
		TokenIssuer:         defaultTokenIssuer,
		TokenAudience:       defaultTokenAudience,
		AccessTokenTTLMin:   defaultAccessTokenTTLMin,
		RefreshTokenTTLDays: defaultRefreshTokenTTLDays,
	}
}

// Load variables from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if parsed, err := strconv.Atoi(value); err == nil {
				*o = parsed
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":            setString(&c.ListenAddr),
		"SECRET_KEY":             setString(&c.SecretKey),
		"LOG_LEVEL":              setString(&c.LogLevel),
		"ENVIRONMENT":            setString(&c.Environment),
		"JWT_ISSUER":             setString(&c.TokenIssuer),
		"JWT_AUDIENCE":           setString(&c.TokenAudience),
		"ACCESS_TOKEN_TTL_MIN":   setInt(&c.AccessTokenTTLMin),
		"REFRESH_TOKEN_TTL_DAYS": setInt(&c.RefreshTokenTTLDays),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("gophauth", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign access tokens")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.TokenIssuer, "issuer", c.TokenIssuer, "Issuer claim for access tokens")
	fs.StringVar(&c.TokenAudience, "audience", c.TokenAudience, "Audience claim for access tokens")
	fs.IntVar(&c.AccessTokenTTLMin, "access-ttl", c.AccessTokenTTLMin, "Access token lifetime in minutes")
	fs.IntVar(&c.RefreshTokenTTLDays, "refresh-ttl", c.RefreshTokenTTLDays, "Refresh token lifetime in days")

	return fs.Parse(args)
}
