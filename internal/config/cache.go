package config

import "time"

// SummaryCacheConfig tunes the read-through cache in front of stored
// rating summaries. Summaries are frozen at promotion time, so long
// TTLs are safe; the cache is invalidated when a term is re-promoted.
type SummaryCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

func LoadSummaryCacheConfig() SummaryCacheConfig {
	return SummaryCacheConfig{
		Enabled: envBool("SUMMARY_CACHE_ENABLED", true),
		TTL:     envDur("SUMMARY_CACHE_TTL", time.Hour),
		Prefix:  envStr("SUMMARY_CACHE_PREFIX", "summary"),
	}
}
