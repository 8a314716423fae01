package config

// Template is written by `speak config` when no config file exists.
const Template = `# provider tried first: system, openai, elevenlabs or google
provider: system

# listed for reference; fallback always walks system, openai, elevenlabs, google
fallback_order: [system, openai, elevenlabs, google]

# per-provider settings. rate is in words per minute (0 = provider default).
# API keys come from OPENAI_API_KEY, ELEVENLABS_API_KEY and GOOGLE_API_KEY,
# a .env file, or the keychain (speak config key PROVIDER).
providers:
  system:
    voice: ""
    rate: 0
  openai:
    voice: alloy
    model: tts-1
  elevenlabs:
    voice: 21m00Tcm4TlvDq8Ikwo2
    model: eleven_multilingual_v2
  google:
    voice: en-US-Standard-C

# result cache for remote providers
cache:
  enabled: true
  # dir: ~/.cache/speak
  # milliseconds or <number><unit> with ms, s, m, h, d, w, M, y (0 = never expire)
  ttl: 30d
  # bytes or <number><unit> with B, KB, MB, GB (0 = unbounded)
  max_size: 500MB

playback:
  # player command, the file path is appended (empty = detect)
  command: ""

# upper bound for a single provider call (0 = none)
provider_timeout: 30s

rate_limit:
  requests_per_minute: 50
`
