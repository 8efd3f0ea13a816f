package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BATTDIAG_"

// LoadDotEnv loads .env files into the process environment without
// overwriting variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			logrus.WithError(err).Warnf("failed to load env file %s", p)
			continue
		}
		logrus.Debugf("loaded env file %s", p)
	}
}

func envString(key string) *string {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
		return &v
	}
	return nil
}

func envInt(key string) *int {
	s := envString(key)
	if s == nil {
		return nil
	}
	i, err := strconv.Atoi(*s)
	if err != nil {
		logrus.Warnf("ignoring %s%s: %v", EnvPrefix, key, err)
		return nil
	}
	return &i
}

func envBool(key string) *bool {
	s := envString(key)
	if s == nil {
		return nil
	}
	b, err := strconv.ParseBool(*s)
	if err != nil {
		logrus.Warnf("ignoring %s%s: %v", EnvPrefix, key, err)
		return nil
	}
	return &b
}

// envOverrides reads the settings that deployments usually inject through
// the environment: listen address, secrets and connection strings.
func envOverrides() *RawFileConfig {
	c := &RawFileConfig{
		Listen:         envString("LISTEN"),
		AdminKey:       envString("ADMIN_KEY"),
		StrictAuth:     envBool("STRICT_AUTH"),
		HistoryBackend: envString("HISTORY_BACKEND"),
		RedisAddr:      envString("REDIS_ADDR"),
		RedisPassword:  envString("REDIS_PASSWORD"),
		RedisDB:        envInt("REDIS_DB"),
		PostgresDSN:    envString("POSTGRES_DSN"),
		MQTTURL:        envString("MQTT_URL"),
		NATSURL:        envString("NATS_URL"),
	}

	// PORT is what most PaaS runtimes set.
	if c.Listen == nil {
		if port, ok := os.LookupEnv("PORT"); ok && port != "" {
			listen := ":" + port
			c.Listen = &listen
		}
	}

	return c
}
