// Package config loads the optional toml files for both binaries and
// layers them over built-in defaults. Only keys present in the file
// override; env overlays come last.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/neuroforge/trainlink/internal/session"
)

const (
	EnvListenAddr = "TRAINLINK_ADDR"
	EnvRedisAddr  = "REDIS_ADDR"
)

// ClientConfig is everything trainctl needs: the session endpoint plus
// the local journal location.
type ClientConfig struct {
	Session     session.Config
	HistoryPath string
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Session:     session.DefaultConfig(),
		HistoryPath: "trainlink-history.db",
	}
}

type clientFile struct {
	Host                 string `toml:"host"`
	Port                 int    `toml:"port"`
	Path                 string `toml:"path"`
	AuthToken            string `toml:"auth_token"`
	DialTimeout          string `toml:"dial_timeout"`
	RequestTimeout       string `toml:"request_timeout"`
	PingInterval         string `toml:"ping_interval"`
	ReconnectBase        string `toml:"reconnect_base"`
	MaxReconnectAttempts int    `toml:"max_reconnect_attempts"`
	HistoryPath          string `toml:"history_path"`
}

// LoadClientConfig reads path over the defaults. An empty path returns
// the defaults untouched.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("host") {
		cfg.Session.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Session.Port = raw.Port
	}
	if meta.IsDefined("path") {
		cfg.Session.Path = strings.TrimSpace(raw.Path)
	}
	if meta.IsDefined("auth_token") {
		cfg.Session.AuthToken = raw.AuthToken
	}
	if meta.IsDefined("dial_timeout") {
		if cfg.Session.DialTimeout, err = parseDuration("dial_timeout", raw.DialTimeout); err != nil {
			return ClientConfig{}, err
		}
	}
	if meta.IsDefined("request_timeout") {
		if cfg.Session.RequestTimeout, err = parseDuration("request_timeout", raw.RequestTimeout); err != nil {
			return ClientConfig{}, err
		}
	}
	if meta.IsDefined("ping_interval") {
		if cfg.Session.PingInterval, err = parseDuration("ping_interval", raw.PingInterval); err != nil {
			return ClientConfig{}, err
		}
	}
	if meta.IsDefined("reconnect_base") {
		if cfg.Session.ReconnectBase, err = parseDuration("reconnect_base", raw.ReconnectBase); err != nil {
			return ClientConfig{}, err
		}
	}
	if meta.IsDefined("max_reconnect_attempts") {
		cfg.Session.MaxReconnectAttempts = raw.MaxReconnectAttempts
	}
	if meta.IsDefined("history_path") {
		cfg.HistoryPath = strings.TrimSpace(raw.HistoryPath)
	}
	return cfg, nil
}

// ServerConfig is everything trainerd needs.
type ServerConfig struct {
	Addr        string
	AuthToken   string
	TrainTick   time.Duration
	RedisAddr   string
	CorsOrigins []string
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		TrainTick: 200 * time.Millisecond,
	}
}

type serverFile struct {
	Addr        string   `toml:"addr"`
	AuthToken   string   `toml:"auth_token"`
	TrainTick   string   `toml:"train_tick"`
	RedisAddr   string   `toml:"redis_addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

// LoadServerConfig reads path over the defaults. An empty path returns
// the defaults untouched.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("load server config: %w", err)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("auth_token") {
		cfg.AuthToken = raw.AuthToken
	}
	if meta.IsDefined("train_tick") {
		if cfg.TrainTick, err = parseDuration("train_tick", raw.TrainTick); err != nil {
			return ServerConfig{}, err
		}
	}
	if meta.IsDefined("redis_addr") {
		cfg.RedisAddr = strings.TrimSpace(raw.RedisAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	return cfg, nil
}

// WithEnv overlays TRAINLINK_ADDR, TRAINLINK_AUTH_TOKEN, and REDIS_ADDR
// onto the server config when set.
func (c ServerConfig) WithEnv() ServerConfig {
	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		c.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(session.EnvAuthToken)); v != "" {
		c.AuthToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		c.RedisAddr = v
	}
	return c
}

func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.TrainTick <= 0 {
		return fmt.Errorf("config: train_tick must be positive")
	}
	return nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}
