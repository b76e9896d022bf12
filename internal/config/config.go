package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// minTokenEntropy is the floor for generated bearer values.
const minTokenEntropy = 128

type Config struct {
	ServerPort              string        `env:"SERVER_PORT"                envDefault:"8080"`
	ServerReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ServerWriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT"       envDefault:"30s"`
	ServerIdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT"        envDefault:"120s"`
	RequestTimeout          time.Duration `env:"REQUEST_TIMEOUT"            envDefault:"30s"`
	CORSOrigins             []string      `env:"CORS_ORIGINS"               envDefault:"*" envSeparator:","`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite://lobbyist.db"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"1"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"pretty"`

	TxRetryAttempts  int           `env:"TX_RETRY_ATTEMPTS"   envDefault:"3"`
	TxRetryBaseDelay time.Duration `env:"TX_RETRY_BASE_DELAY" envDefault:"10ms"`

	UsernameMinLength int `env:"USERNAME_MIN_LENGTH" envDefault:"4"`
	UsernameMaxLength int `env:"USERNAME_MAX_LENGTH" envDefault:"64"`
	PasswordMinLength int `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	BcryptCost        int `env:"BCRYPT_COST"         envDefault:"12"`

	SecretNameEntropyBits   int `env:"SECRET_NAME_ENTROPY_BITS"   envDefault:"192"`
	SecretValueEntropyBits  int `env:"SECRET_VALUE_ENTROPY_BITS"  envDefault:"384"`
	AccessTokenEntropyBits  int `env:"ACCESS_TOKEN_ENTROPY_BITS"  envDefault:"256"`
	RefreshTokenEntropyBits int `env:"REFRESH_TOKEN_ENTROPY_BITS" envDefault:"256"`

	AccessTokenLifetimeMin      time.Duration `env:"ACCESS_TOKEN_LIFETIME_MIN"      envDefault:"1h"`
	AccessTokenLifetimeMax      time.Duration `env:"ACCESS_TOKEN_LIFETIME_MAX"      envDefault:"72h"`
	AccessTokenLifetimeDefault  time.Duration `env:"ACCESS_TOKEN_LIFETIME_DEFAULT"  envDefault:"24h"`
	RefreshTokenLifetimeMin     time.Duration `env:"REFRESH_TOKEN_LIFETIME_MIN"     envDefault:"1h"`
	RefreshTokenLifetimeMax     time.Duration `env:"REFRESH_TOKEN_LIFETIME_MAX"     envDefault:"336h"`
	RefreshTokenLifetimeDefault time.Duration `env:"REFRESH_TOKEN_LIFETIME_DEFAULT" envDefault:"168h"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse builds the configuration from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerPort) == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL cannot be empty")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS and DB_MAX_CONNS must satisfy 0 <= min <= max, max > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	switch c.LogFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be pretty or json")
	}

	if c.TxRetryAttempts < 1 {
		return fmt.Errorf("TX_RETRY_ATTEMPTS must be at least 1")
	}

	if c.TxRetryBaseDelay <= 0 {
		return fmt.Errorf("TX_RETRY_BASE_DELAY must be positive")
	}

	if c.UsernameMinLength < 1 || c.UsernameMinLength > c.UsernameMaxLength {
		return fmt.Errorf("USERNAME_MIN_LENGTH must be positive and not above USERNAME_MAX_LENGTH")
	}

	if c.PasswordMinLength < 1 || c.PasswordMinLength > 72 {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be between 1 and 72")
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	for key, bits := range map[string]int{
		"SECRET_NAME_ENTROPY_BITS":   c.SecretNameEntropyBits,
		"SECRET_VALUE_ENTROPY_BITS":  c.SecretValueEntropyBits,
		"ACCESS_TOKEN_ENTROPY_BITS":  c.AccessTokenEntropyBits,
		"REFRESH_TOKEN_ENTROPY_BITS": c.RefreshTokenEntropyBits,
	} {
		if bits < minTokenEntropy {
			return fmt.Errorf("%s must be at least %d", key, minTokenEntropy)
		}
	}

	// Generated secret values are bcrypt hashed, so their encoding must fit
	// in 72 bytes.
	if (c.SecretValueEntropyBits+7)/8*4/3 > 72 {
		return fmt.Errorf("SECRET_VALUE_ENTROPY_BITS is too large to hash")
	}

	if err := checkLifetimes("ACCESS_TOKEN_LIFETIME", c.AccessTokenLifetimeMin, c.AccessTokenLifetimeDefault, c.AccessTokenLifetimeMax); err != nil {
		return err
	}

	return checkLifetimes("REFRESH_TOKEN_LIFETIME", c.RefreshTokenLifetimeMin, c.RefreshTokenLifetimeDefault, c.RefreshTokenLifetimeMax)
}

func checkLifetimes(prefix string, lower, def, upper time.Duration) error {
	if lower <= 0 || lower > def || def > upper {
		return fmt.Errorf("%s_MIN <= %s_DEFAULT <= %s_MAX must hold with a positive minimum", prefix, prefix, prefix)
	}
	return nil
}
