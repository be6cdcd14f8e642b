// Package config loads viruscan configuration from local and global YAML
// files with precedence rules. CLI flags override file values; accessors
// fill in defaults for anything left unset.
package config
