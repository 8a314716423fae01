// Package engines contains the synthesis providers. The system engine drives
// the platform voice (say, espeak-ng); openai, elevenlabs and google call
// their REST APIs. Each engine implements ttypes.Engine.
package engines
