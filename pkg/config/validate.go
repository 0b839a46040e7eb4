package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against its struct validation tags and
// the cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The routing table is validated structurally by the router: first-match
	// ordering only works when the table ends in a wildcard default.
	if _, err := cfg.RouterRules(); err != nil {
		return fmt.Errorf("invalid routing configuration: %w", err)
	}

	return nil
}
