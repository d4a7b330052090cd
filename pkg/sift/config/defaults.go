// Package config provides configuration management for sift.
package config

// Default configuration values for sift.
const (
	// DefaultMinSize disables the minimum size filter.
	DefaultMinSize = "0"

	// DefaultChunkSize is the read size used while hashing.
	DefaultChunkSize = "128KiB"

	// DefaultCacheBackend is the cache store used when none is configured.
	DefaultCacheBackend = "badger"

	// DefaultOutputFormat is the report formatter used by search and smart.
	DefaultOutputFormat = "pretty"

	// DefaultFallback is the smart search policy on a cache miss.
	DefaultFallback = "ask"

	// DefaultHistoryLimit is the number of entries listed by sift history.
	DefaultHistoryLimit = 20

	// DefaultHistoryRetentionDays is how long history entries are kept.
	DefaultHistoryRetentionDays = 90
)

// DefaultExclusions contains paths that are excluded from scanning by default.
var DefaultExclusions = []string{
	"/proc",
	"/sys",
	"/dev",
}
