package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultTokenEnv is consulted when neither token nor token_env is set.
const DefaultTokenEnv = "LINKBOT_TOKEN"

// LoadEnv loads KEY=VALUE pairs from the given .env files without overriding
// variables already present in the process environment. Missing files are
// ignored.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if strings.TrimSpace(f) == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ResolveToken returns the bot token: telegram.token, else the variable named
// by telegram.token_env, else $LINKBOT_TOKEN.
func ResolveToken(tc TelegramConfig) (string, error) {
	if t := strings.TrimSpace(tc.Token); t != "" {
		return t, nil
	}
	name := strings.TrimSpace(tc.TokenEnv)
	if name == "" {
		name = DefaultTokenEnv
	}
	if t := strings.TrimSpace(os.Getenv(name)); t != "" {
		return t, nil
	}
	return "", fmt.Errorf("telegram.token is empty and $%s is not set", name)
}
