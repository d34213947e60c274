package config

import "os"

type AppConfig struct {
	DebugMode   bool
	TCPConfig   *TCPConfig
	HTTPConfig  *HTTPConfig
	RedisConfig *RedisConfig
	DispatchCfg *DispatchCfg
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:   os.Getenv("DEBUG_MODE") == "true",
		TCPConfig:   NewTCPConfig(),
		HTTPConfig:  NewHTTPConfig(),
		RedisConfig: NewRedisConfig(),
		DispatchCfg: NewDispatchCfg(),
	}
}

type TCPConfig struct {
	Address string
}

func NewTCPConfig() *TCPConfig {
	addr := os.Getenv("TCP_ADDR")
	if addr == "" {
		addr = ":9000"
	}
	return &TCPConfig{Address: addr}
}

type HTTPConfig struct {
	Port int
}

func NewHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Port: getIntEnv("HTTP_PORT", 8082),
	}
}
