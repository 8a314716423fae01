// Package cache provides the content-addressable result cache for synthesized
// speech. Artifacts live as plain audio files in the cache directory, a SQLite
// metadata index records one row per artifact, and a small stats file keeps
// hit/miss counters across restarts. TTL expiry and a size budget are enforced
// lazily on lookup and insert, and on demand by Prune.
package cache
