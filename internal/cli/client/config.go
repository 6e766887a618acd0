package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/agentkb/internal/service"
)

// GlobalConfig is what 'agentkb auth login' persists.
type GlobalConfig struct {
	APIKey string `json:"api_key"`
	APIURL string `json:"api_url"`
}

// configPath locates the credentials file. Tests point it at a temp dir.
var configPath = func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, "agentkb", "config.json"), nil
}

// LoadGlobalConfig returns nil, nil when no credentials were saved.
func LoadGlobalConfig() (*GlobalConfig, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg GlobalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// SaveGlobalConfig replaces the credentials file atomically with mode 0600.
func SaveGlobalConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}

	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.json")
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// DeleteGlobalConfig removes saved credentials. A missing file is not an error.
func DeleteGlobalConfig() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func IsValidAPIKey(key string) bool {
	return service.IsValidAPIToken(key)
}

// CredentialSource names where a credential value came from.
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceDefault      CredentialSource = "default"
	SourceNone         CredentialSource = "none"
)

// Credentials are resolved per field: flag, then environment (including a
// local .env file), then the saved global config. The URL falls back to
// defaultAPIURL; the key has no default.
type Credentials struct {
	APIKey    string
	APIURL    string
	KeySource CredentialSource
	URLSource CredentialSource
}

func (c Credentials) Authenticated() bool {
	return c.KeySource != SourceNone
}

func ResolveCredentials(flagKey, flagURL string) (Credentials, error) {
	_ = godotenv.Load()

	creds := Credentials{KeySource: SourceNone, URLSource: SourceNone}
	pick := func(dst *string, src *CredentialSource, value string, from CredentialSource) {
		if *src == SourceNone && value != "" {
			*dst, *src = value, from
		}
	}

	pick(&creds.APIKey, &creds.KeySource, flagKey, SourceFlag)
	pick(&creds.APIURL, &creds.URLSource, flagURL, SourceFlag)
	pick(&creds.APIKey, &creds.KeySource, os.Getenv(envAPIKey), SourceEnv)
	pick(&creds.APIURL, &creds.URLSource, os.Getenv(envAPIURL), SourceEnv)

	if creds.KeySource == SourceNone || creds.URLSource == SourceNone {
		saved, err := LoadGlobalConfig()
		if err != nil {
			return creds, err
		}
		if saved != nil {
			pick(&creds.APIKey, &creds.KeySource, saved.APIKey, SourceGlobalConfig)
			pick(&creds.APIURL, &creds.URLSource, saved.APIURL, SourceGlobalConfig)
		}
	}

	pick(&creds.APIURL, &creds.URLSource, defaultAPIURL, SourceDefault)
	return creds, nil
}

func credentialFlags(cmd *cobra.Command) (key, url string) {
	if cmd == nil {
		return "", ""
	}
	key, _ = cmd.Flags().GetString("api-key")
	url, _ = cmd.Flags().GetString("api-url")
	return key, url
}
