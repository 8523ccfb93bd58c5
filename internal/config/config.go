// Package config loads and saves bridge configuration from YAML, with .env
// and environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"elmbridge/internal/link"
	"elmbridge/internal/logger"
)

// Config holds all bridge configuration.
type Config struct {
	mu sync.RWMutex

	// TCP side (what the OBD app connects to)
	Bridge BridgeConfig `yaml:"bridge" json:"bridge"`

	// Serial side (the vehicle adapter)
	Link LinkConfig `yaml:"link" json:"link"`

	// Status monitor web UI
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`

	// Exchange logging
	Logging logger.Config `yaml:"logging" json:"logging"`

	path string // file path for save/load
}

type BridgeConfig struct {
	Port int `yaml:"port" json:"port"` // default 35000 (ELM327 WiFi convention)
}

type LinkConfig struct {
	Type   string            `yaml:"type" json:"type"` // "serial" or "demo"
	Serial link.SerialConfig `yaml:"serial" json:"serial"`
}

type MonitorConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Port: 35000,
		},
		Link: LinkConfig{
			Type: "serial",
			Serial: link.SerialConfig{
				PortPath: "/dev/rfcomm0",
				BaudRate: 38400,
			},
		},
		Monitor: MonitorConfig{
			Enabled:    true,
			ListenAddr: ":8080",
		},
		Logging: logger.Config{
			Enabled: false,
			Path:    "/var/log/elmbridge",
		},
	}
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func Load(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env from the config directory, then CWD. Real env wins.
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: BRIDGE_PORT, LINK_TYPE, LINK_PORT, LINK_BAUD, MONITOR_ENABLED,
// MONITOR_ADDR, LOG_ENABLED, LOG_PATH
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BRIDGE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Bridge.Port = n
		}
	}
	if v := os.Getenv("LINK_TYPE"); v != "" {
		c.Link.Type = v
	}
	if v := os.Getenv("LINK_PORT"); v != "" {
		c.Link.Serial.PortPath = v
	}
	if v := os.Getenv("LINK_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Link.Serial.BaudRate = n
		}
	}
	if v := os.Getenv("MONITOR_ENABLED"); v != "" {
		c.Monitor.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("MONITOR_ADDR"); v != "" {
		c.Monitor.ListenAddr = v
	}
	if v := os.Getenv("LOG_ENABLED"); v != "" {
		c.Logging.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("LOG_PATH"); v != "" {
		c.Logging.Path = v
	}
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		c.path = "/etc/elmbridge/config.yaml"
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ToJSON serializes config for the monitor API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved (e.g. port paths, baud rates, logging).
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	return json.Unmarshal(merged, c)
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
