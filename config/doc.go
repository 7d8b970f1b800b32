// Package config loads the toolkit configuration: a YAML file merged onto
// defaults, with environment variables taking precedence.
package config
