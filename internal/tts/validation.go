package tts

import (
	"runtime"

	"github.com/dgnsrekt/speak/internal/tts/engines"
	"github.com/dgnsrekt/speak/internal/ttypes"
)

// ValidationResult contains the result of provider validation
type ValidationResult struct {
	// Provider is the validated provider
	Provider ttypes.Name

	// Registered is false when no engine exists for the provider
	Registered bool

	// Available indicates if the provider is configured
	Available bool

	// Local is true for the system voice
	Local bool

	// Guidance provides setup instructions if validation failed
	Guidance string
}

// CheckProviders reports the state of every provider in canonical order.
// It performs no network calls.
func CheckProviders(registered map[ttypes.Name]ttypes.Engine) []ValidationResult {
	results := make([]ValidationResult, 0, len(ttypes.CanonicalOrder))
	for _, name := range ttypes.CanonicalOrder {
		r := ValidationResult{Provider: name, Local: name.IsLocal()}
		if eng, ok := registered[name]; ok {
			r.Registered = true
			r.Available = eng.IsConfigured()
		}
		if !r.Available {
			r.Guidance = guidance(name)
		}
		results = append(results, r)
	}
	return results
}

// guidance returns setup instructions for name.
func guidance(name ttypes.Name) string {
	switch name {
	case ttypes.ProviderSystem:
		if runtime.GOOS == "darwin" {
			return "The say command was not found. It ships with macOS; check your PATH."
		}
		return `No system voice found. Install espeak-ng:

   # Ubuntu/Debian
   sudo apt install espeak-ng

   # Arch Linux
   sudo pacman -S espeak-ng

   # Fedora
   sudo dnf install espeak-ng`
	case ttypes.ProviderOpenAI:
		return keyGuidance(name, engines.OpenAIKeyEnv, "https://platform.openai.com/api-keys")
	case ttypes.ProviderElevenLabs:
		return keyGuidance(name, engines.ElevenLabsKeyEnv, "https://elevenlabs.io/app/settings/api-keys")
	case ttypes.ProviderGoogle:
		return keyGuidance(name, engines.GoogleKeyEnv, "https://console.cloud.google.com/apis/credentials")
	default:
		return ""
	}
}

func keyGuidance(name ttypes.Name, envVar, url string) string {
	return `No API key for ` + string(name) + `. Create one at ` + url + ` and either:

1. export ` + envVar + `=...
2. add ` + envVar + `=... to .env in the working or home directory
3. store it in the keychain: speak config key ` + string(name)
}
