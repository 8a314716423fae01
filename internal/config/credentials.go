package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

// KeyringService is the keychain service credentials are stored under. The
// keychain user is the provider name.
const KeyringService = AppName

// Credentials holds the API keys of the remote providers.
type Credentials struct {
	OpenAI     string `env:"OPENAI_API_KEY"`
	ElevenLabs string `env:"ELEVENLABS_API_KEY"`
	Google     string `env:"GOOGLE_API_KEY"`
}

// LoadEnvFiles loads .env from the working directory, then from the home
// directory. Variables already set are not overridden.
func LoadEnvFiles() {
	_ = godotenv.Load()

	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".env"))
	}
}

// LoadCredentials reads API keys from environ (nil = the process
// environment) and looks up missing ones in the OS keychain.
func LoadCredentials(environ map[string]string, logger *log.Logger) (Credentials, error) {
	if logger == nil {
		logger = log.Default()
	}

	creds, err := env.ParseAsWithOptions[Credentials](env.Options{Environment: environ})
	if err != nil {
		return creds, fmt.Errorf("error parsing credentials: %w", err)
	}

	for _, name := range []ttypes.Name{ttypes.ProviderOpenAI, ttypes.ProviderElevenLabs, ttypes.ProviderGoogle} {
		if creds.For(name) != "" {
			continue
		}
		secret, err := keyring.Get(KeyringService, string(name))
		switch {
		case err == nil:
			creds.set(name, strings.TrimSpace(secret))
			logger.Debug("credential loaded from keychain", "provider", name)
		case errors.Is(err, keyring.ErrNotFound):
		default:
			logger.Warn("keychain access failed", "provider", name, "err", err)
		}
	}

	return creds, nil
}

// StoreCredential saves secret for name in the OS keychain.
func StoreCredential(name ttypes.Name, secret string) error {
	if name.IsLocal() {
		return fmt.Errorf("%s does not use a credential", name)
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return errors.New("refusing to store an empty credential")
	}
	if err := keyring.Set(KeyringService, string(name), secret); err != nil {
		return fmt.Errorf("unable to store credential for %s: %w", name, err)
	}
	return nil
}

// DeleteCredential removes the stored credential for name. A missing
// entry is not an error.
func DeleteCredential(name ttypes.Name) error {
	err := keyring.Delete(KeyringService, string(name))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("unable to delete credential for %s: %w", name, err)
	}
	return nil
}

// For returns the API key of name, empty for the system voice.
func (c Credentials) For(name ttypes.Name) string {
	switch name {
	case ttypes.ProviderOpenAI:
		return c.OpenAI
	case ttypes.ProviderElevenLabs:
		return c.ElevenLabs
	case ttypes.ProviderGoogle:
		return c.Google
	default:
		return ""
	}
}

func (c *Credentials) set(name ttypes.Name, secret string) {
	switch name {
	case ttypes.ProviderOpenAI:
		c.OpenAI = secret
	case ttypes.ProviderElevenLabs:
		c.ElevenLabs = secret
	case ttypes.ProviderGoogle:
		c.Google = secret
	}
}
