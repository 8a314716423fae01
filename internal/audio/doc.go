// Package audio plays synthesized speech through an external player process
// (afplay, ffplay, mpv, mpg123, paplay or aplay). The active process can be
// killed to interrupt playback.
package audio
