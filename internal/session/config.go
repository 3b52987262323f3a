package session

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvHost      = "TRAINLINK_HOST"
	EnvPort      = "TRAINLINK_PORT"
	EnvAuthToken = "TRAINLINK_AUTH_TOKEN"
)

// Config defines endpoint and reliability settings for one Client.
type Config struct {
	Host      string
	Port      int
	Path      string
	AuthToken string

	DialTimeout          time.Duration
	RequestTimeout       time.Duration
	PingInterval         time.Duration
	ReconnectBase        time.Duration
	MaxReconnectAttempts int
	EventBuffer          int

	// Logger overrides the process-global logger when set.
	Logger *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		Host:                 "localhost",
		Port:                 8080,
		Path:                 "/ws",
		DialTimeout:          10 * time.Second,
		RequestTimeout:       30 * time.Second,
		PingInterval:         30 * time.Second,
		ReconnectBase:        time.Second,
		MaxReconnectAttempts: 5,
		EventBuffer:          16,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.Host) == "" {
		c.Host = def.Host
	}
	if c.Port <= 0 {
		c.Port = def.Port
	}
	if strings.TrimSpace(c.Path) == "" {
		c.Path = def.Path
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = def.ReconnectBase
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}

// WithEnv overlays TRAINLINK_HOST, TRAINLINK_PORT, and
// TRAINLINK_AUTH_TOKEN onto the config when set.
func (c Config) WithEnv() Config {
	if v := strings.TrimSpace(os.Getenv(EnvHost)); v != "" {
		c.Host = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAuthToken)); v != "" {
		c.AuthToken = v
	}
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrHostRequired
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("session: invalid port %d", c.Port)
	}
	return nil
}

// URL is the endpoint address the transport dials.
func (c Config) URL() string {
	path := c.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("ws://%s:%d%s", c.Host, c.Port, path)
}
