package config

import (
	"errors"
	"os"
	"sort"
	"strings"
)

// ErrUnknownKey is returned when a config key has no value or default.
var ErrUnknownKey = errors.New("unknown config key")

// KeySource represents where a config value was loaded from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config_file"
	KeySourceDefault KeySource = "default"
)

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Keys returns every known config key in sorted order.
func (c *Config) Keys() []string {
	if c.v == nil {
		return nil
	}
	keys := c.v.AllKeys()
	sort.Strings(keys)
	return keys
}

// Get returns the effective value of key.
func (c *Config) Get(key string) (any, error) {
	if c.v == nil || !c.v.IsSet(key) {
		return nil, ErrUnknownKey
	}
	return c.v.Get(key), nil
}

// Source returns where the effective value of key came from.
func (c *Config) Source(key string) KeySource {
	if _, ok := os.LookupEnv(EnvName(key)); ok {
		return KeySourceEnv
	}
	if c.v != nil && c.v.InConfig(key) {
		return KeySourceConfig
	}
	return KeySourceDefault
}
