package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no Anthropic credentials are configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// KeySource represents where the credentials of a run come from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config_file"
	KeySourceBedrock KeySource = "aws_bedrock"
	KeySourceNone    KeySource = "none"
)

// ResolveAPIKey returns the API key and where it was found. The
// ANTHROPIC_API_KEY variable wins over the config file. Bedrock runs use
// AWS credentials and need no key.
func ResolveAPIKey(cfg *Config) (string, KeySource, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, KeySourceEnv, nil
	}
	if cfg != nil {
		if key := os.ExpandEnv(cfg.Anthropic.APIKey); key != "" && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig, nil
		}
		if cfg.Anthropic.UseBedrock {
			return "", KeySourceBedrock, nil
		}
	}
	return "", KeySourceNone, ErrNoAPIKey
}

// ValidateAPIKey checks the key format. It does not contact the API.
func ValidateAPIKey(key string) error {
	switch {
	case key == "":
		return ErrNoAPIKey
	case !strings.HasPrefix(key, "sk-ant-"):
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	case len(key) < 20:
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey hides all but the prefix and the last four characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// Display returns the value of key suitable for printing.
func Display(cfg *Config, key string) (string, error) {
	v, err := Get(cfg, key)
	if err != nil {
		return "", err
	}
	if key == "anthropic.api_key" {
		return MaskAPIKey(v), nil
	}
	return v, nil
}
