package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env string `yaml:"env"`

	HTTP struct {
		Addr string `yaml:"addr"` // ":8080"
	} `yaml:"http"`

	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		Database int    `yaml:"database"`
	} `yaml:"redis"`

	Nats struct {
		Enabled bool     `yaml:"enabled"`
		Servers []string `yaml:"servers"`
		Subject string   `yaml:"subject"` // fan-out bridge subject prefix
	} `yaml:"nats"`

	Auth struct {
		Secret string        `yaml:"secret"`
		TTL    time.Duration `yaml:"ttl"`
	} `yaml:"auth"`

	Presence struct {
		SweepEvery    time.Duration `yaml:"sweep_every"`    // default 60s
		IdleThreshold time.Duration `yaml:"idle_threshold"` // default 5m
	} `yaml:"presence"`

	Delivery struct {
		// Delay before a saved message flips sent -> delivered.
		DeliveredAfter time.Duration `yaml:"delivered_after"`
	} `yaml:"delivery"`

	NodeID int64 `yaml:"node_id"` // snowflake node (0~1023)
}

// Load supports comma-separated config files: "-c common.yml,server.yml".
// Later files override earlier ones.
func Load(pathList string) (*Config, error) {
	if strings.TrimSpace(pathList) == "" {
		return nil, errors.New("config path required (e.g. -c ./config.yml)")
	}
	var c Config
	for _, p := range strings.Split(pathList, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}
	c.applyDefaults()
	if sec := os.Getenv("PELEGRAM_JWT_SECRET"); sec != "" {
		c.Auth.Secret = sec
	}
	return &c, nil
}

// Default returns a config usable without a file (tests, local runs).
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://127.0.0.1:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "pelegram"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if len(c.Nats.Servers) == 0 {
		c.Nats.Servers = []string{"nats://127.0.0.1:4222"}
	}
	if c.Nats.Subject == "" {
		c.Nats.Subject = "pelegram.events"
	}
	if c.Auth.TTL <= 0 {
		c.Auth.TTL = 2 * time.Hour
	}
	if c.Presence.SweepEvery <= 0 {
		c.Presence.SweepEvery = 60 * time.Second
	}
	if c.Presence.IdleThreshold <= 0 {
		c.Presence.IdleThreshold = 5 * time.Minute
	}
	if c.Delivery.DeliveredAfter <= 0 {
		c.Delivery.DeliveredAfter = time.Second
	}
	if c.NodeID <= 0 || c.NodeID > 1023 {
		c.NodeID = 1
	}
}
