// Package config defines the fieldstore-server configuration: schema,
// defaults, loading through confloader and verification.
package config
