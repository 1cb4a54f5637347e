// Package confloader loads redis-lite startup configuration.
//
// Sources are merged in priority order Flag > Env > File > Default. Files
// are YAML. Environment variables use the REDISLITE_ prefix with
// underscores separating key segments, so REDISLITE_LOG_LEVEL sets
// log.level.
package confloader
