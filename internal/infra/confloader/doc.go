// Package confloader loads configuration with koanf.
//
// Sources, later ones overriding earlier ones:
//
//  1. Defaults (the target struct as passed in)
//  2. YAML configuration file
//  3. FIELDSTORE_ environment variables
//  4. Explicit maps (command-line flags)
//
// Watcher reports changes to the configuration file so a running agent
// can pick up reloadable settings.
package confloader
