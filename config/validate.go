package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxChainIDLen is the longest chain id that still packs into one word.
const MaxChainIDLen = 32

var (
	ErrChainIDRequired       = errors.New("config: ChainID required")
	ErrChainIDTooLong        = errors.New("config: ChainID longer than 32 bytes")
	ErrInvalidSecurityPeriod = errors.New("config: SecurityPeriod must be a positive duration")
	ErrInvalidLogRotation    = errors.New("config: logging rotation limits must not be negative")
)

// Validate checks the settings the ledger and wallet classes depend on.
func Validate(cfg *Config) error {
	chainID := strings.TrimSpace(cfg.ChainID)
	if chainID == "" {
		return ErrChainIDRequired
	}
	if len(chainID) > MaxChainIDLen {
		return ErrChainIDTooLong
	}
	period, err := time.ParseDuration(cfg.SecurityPeriod)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSecurityPeriod, err)
	}
	if period < time.Second {
		return ErrInvalidSecurityPeriod
	}
	if err := cfg.Keystore.Params().Validate(); err != nil {
		return fmt.Errorf("config: keystore: %w", err)
	}
	if cfg.Logging.MaxSizeMB < 0 || cfg.Logging.MaxBackups < 0 || cfg.Logging.MaxAgeDays < 0 {
		return ErrInvalidLogRotation
	}
	return nil
}
