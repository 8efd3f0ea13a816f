package config

import "github.com/sirupsen/logrus"

// History backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config interface {
	Listen() string
	// APIKeys maps each key to its persisted usage count. An empty map
	// means any non-empty key is accepted.
	APIKeys() map[string]int
	AdminKey() string
	// MaxKeyUsage is the request cap per key. 0 means unlimited.
	MaxKeyUsage() int
	UsageResetSchedule() string
	StrictAuth() bool

	HistoryBackend() string
	RedisAddr() string
	RedisPassword() string
	RedisDB() int
	PostgresDSN() string

	RegistryTable() string
	AllowedOrigins() []string
	RateLimitRPS() float64
	RateLimitBurst() int

	MQTTURL() string
	MQTTTopic() string
	NATSURL() string
	NATSSubject() string
	MetricsEnabled() bool

	SetListen(string)
	SetAPIKeys(map[string]int)
	SetAdminKey(string)
	SetMaxKeyUsage(int)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
	LogrusFields() logrus.Fields
}
