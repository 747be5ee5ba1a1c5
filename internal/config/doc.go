// Package config loads, normalizes, and validates proctor configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PROCTOR_REDIS_ADDR. An optional .env file next to the working directory is
// loaded before environment lookups so local development can keep secrets out
// of the TOML file.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
