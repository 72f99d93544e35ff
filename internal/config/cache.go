package config

import "time"

// CacheConfig defines settings for the analytics result cache.  When Enabled
// is false or no Redis client could be created, results are always computed
// from the database.  TTL bounds how stale a cached result may get if an
// invalidation is missed; Prefix namespaces the keys.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads CACHE_* variables, applying defaults for unset ones.
func LoadCacheConfig() CacheConfig {
	c := CacheConfig{
		Enabled: envBool("CACHE_ENABLED", false),
		TTL:     envDur("CACHE_TTL", 5*time.Minute),
		Prefix:  envStr("CACHE_PREFIX", "repairdesk:analytics"),
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	return c
}
