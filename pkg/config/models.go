package config

import "time"

type Config struct {
	Server  ServerConfig
	Sweeper SweeperConfig
	Store   StoreConfig
}

type ServerConfig struct {
	Address string
	Auth    AuthConfig
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

type SweeperConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	ProbeTimeout time.Duration `mapstructure:"probeTimeout"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "memory" or "badger"
	Path    string `mapstructure:"path"`
}
