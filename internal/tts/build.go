package tts

import (
	"github.com/dgnsrekt/speak/internal/config"
	"github.com/dgnsrekt/speak/internal/tts/engines"
	"github.com/dgnsrekt/speak/internal/ttypes"
)

// BuildEngines creates one engine per provider from cfg. Engines without
// credentials are still registered and report themselves as not configured.
func BuildEngines(cfg config.Config) map[ttypes.Name]ttypes.Engine {
	sys := cfg.ProviderSettings(ttypes.ProviderSystem)
	out := map[ttypes.Name]ttypes.Engine{
		ttypes.ProviderSystem: engines.NewSystem(engines.SystemConfig{
			Binary: sys.Binary,
			Voice:  sys.Voice,
		}),
	}

	remote := func(name ttypes.Name) engines.RemoteConfig {
		p := cfg.ProviderSettings(name)
		return engines.RemoteConfig{
			APIKey:            cfg.Credentials.For(name),
			BaseURL:           p.BaseURL,
			Voice:             p.Voice,
			Model:             p.Model,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		}
	}

	out[ttypes.ProviderOpenAI] = engines.NewOpenAI(remote(ttypes.ProviderOpenAI))
	out[ttypes.ProviderElevenLabs] = engines.NewElevenLabs(remote(ttypes.ProviderElevenLabs))
	out[ttypes.ProviderGoogle] = engines.NewGoogle(remote(ttypes.ProviderGoogle))

	return out
}
