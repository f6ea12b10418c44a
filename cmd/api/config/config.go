package config

import "time"

type Config struct {
	InitialBalance   int64
	LowBalanceMark   int64
	TickInterval     time.Duration
	TicksPerMinute   int64
	ConfirmTimeout   time.Duration
	WSStatusInterval time.Duration
	PersistTimeout   time.Duration
	GenAIModel       string
	MetricsNamespace string
}

func NewConfig() *Config {
	return &Config{
		InitialBalance:   500,
		LowBalanceMark:   50,
		TickInterval:     6 * time.Second,
		TicksPerMinute:   10,
		ConfirmTimeout:   5 * time.Second,
		WSStatusInterval: 1 * time.Second,
		PersistTimeout:   2 * time.Second,
		GenAIModel:       "gemini-1.5-flash",
		MetricsNamespace: "astroconnect",
	}
}
