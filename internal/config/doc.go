// Package config provides configuration loading and validation for the two
// OSC bridge roles. Each role starts from compiled defaults and layers an
// optional YAML file and prefixed environment variables on top; command-line
// flags are applied by the callers before validation.
package config
