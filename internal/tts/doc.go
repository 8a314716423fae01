// Package tts orchestrates speech: a priority queue feeds a controller that
// walks the provider chain, reuses cached remote audio and plays the result.
package tts
