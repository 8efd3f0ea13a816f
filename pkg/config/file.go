package config

import (
	"encoding/json"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/battos/battdiag/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		Listen:             ptr.To(":8000"),
		AdminKey:           ptr.To(""),
		MaxKeyUsage:        ptr.To(0),
		UsageResetSchedule: ptr.To(""),
		StrictAuth:         ptr.To(false),
		HistoryBackend:     ptr.To(BackendMemory),
		RedisAddr:          ptr.To("localhost:6379"),
		RedisPassword:      ptr.To(""),
		RedisDB:            ptr.To(0),
		PostgresDSN:        ptr.To(""),
		RegistryTable:      ptr.To(""),
		AllowedOrigins:     []string{"*"},
		// Rate limiting is off unless an RPS is set.
		RateLimitRPS:   ptr.To(0.0),
		RateLimitBurst: ptr.To(10),
		MQTTURL:        ptr.To(""),
		MQTTTopic:      ptr.To("battdiag/diagnostics"),
		NATSURL:        ptr.To(""),
		NATSSubject:    ptr.To("battdiag.diagnostics"),
		MetricsEnabled: ptr.To(true),
	}
)

var _ Config = &File{}

type File struct {
	c *RawFileConfig
	// env holds overrides from the environment. They win over the file and
	// are never saved back to it.
	env      *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		env:      &RawFileConfig{},
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	Listen             *string        `json:"listen,omitempty"`
	APIKeys            map[string]int `json:"apiKeys,omitempty"`
	AdminKey           *string        `json:"adminKey,omitempty"`
	MaxKeyUsage        *int           `json:"maxKeyUsage,omitempty"`
	UsageResetSchedule *string        `json:"usageResetSchedule,omitempty"`
	StrictAuth         *bool          `json:"strictAuth,omitempty"`

	HistoryBackend *string `json:"historyBackend,omitempty"`
	RedisAddr      *string `json:"redisAddr,omitempty"`
	RedisPassword  *string `json:"redisPassword,omitempty"`
	RedisDB        *int    `json:"redisDB,omitempty"`
	PostgresDSN    *string `json:"postgresDSN,omitempty"`

	RegistryTable  *string  `json:"registryTable,omitempty"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
	RateLimitRPS   *float64 `json:"rateLimitRPS,omitempty"`
	RateLimitBurst *int     `json:"rateLimitBurst,omitempty"`

	MQTTURL        *string `json:"mqttURL,omitempty"`
	MQTTTopic      *string `json:"mqttTopic,omitempty"`
	NATSURL        *string `json:"natsURL,omitempty"`
	NATSSubject    *string `json:"natsSubject,omitempty"`
	MetricsEnabled *bool   `json:"metricsEnabled,omitempty"`
}

// get resolves a field from the environment, then the file, then defaults.
func get[T any](f *File, field func(*RawFileConfig) *T) T {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if v := field(f.env); v != nil {
		return *v
	}
	if v := field(f.c); v != nil {
		return *v
	}
	return *field(defaultFileConfig)
}

func (f *File) Listen() string {
	return get(f, func(c *RawFileConfig) *string { return c.Listen })
}

func (f *File) APIKeys() map[string]int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return maps.Clone(f.c.APIKeys)
}

func (f *File) AdminKey() string {
	return get(f, func(c *RawFileConfig) *string { return c.AdminKey })
}

func (f *File) MaxKeyUsage() int {
	return get(f, func(c *RawFileConfig) *int { return c.MaxKeyUsage })
}

func (f *File) UsageResetSchedule() string {
	return get(f, func(c *RawFileConfig) *string { return c.UsageResetSchedule })
}

func (f *File) StrictAuth() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.StrictAuth })
}

func (f *File) HistoryBackend() string {
	return strings.ToLower(get(f, func(c *RawFileConfig) *string { return c.HistoryBackend }))
}

func (f *File) RedisAddr() string {
	return get(f, func(c *RawFileConfig) *string { return c.RedisAddr })
}

func (f *File) RedisPassword() string {
	return get(f, func(c *RawFileConfig) *string { return c.RedisPassword })
}

func (f *File) RedisDB() int {
	return get(f, func(c *RawFileConfig) *int { return c.RedisDB })
}

func (f *File) PostgresDSN() string {
	return get(f, func(c *RawFileConfig) *string { return c.PostgresDSN })
}

func (f *File) RegistryTable() string {
	return get(f, func(c *RawFileConfig) *string { return c.RegistryTable })
}

func (f *File) AllowedOrigins() []string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.c.AllowedOrigins) > 0 {
		return slices.Clone(f.c.AllowedOrigins)
	}
	return slices.Clone(defaultFileConfig.AllowedOrigins)
}

func (f *File) RateLimitRPS() float64 {
	return get(f, func(c *RawFileConfig) *float64 { return c.RateLimitRPS })
}

func (f *File) RateLimitBurst() int {
	return get(f, func(c *RawFileConfig) *int { return c.RateLimitBurst })
}

func (f *File) MQTTURL() string {
	return get(f, func(c *RawFileConfig) *string { return c.MQTTURL })
}

func (f *File) MQTTTopic() string {
	return get(f, func(c *RawFileConfig) *string { return c.MQTTTopic })
}

func (f *File) NATSURL() string {
	return get(f, func(c *RawFileConfig) *string { return c.NATSURL })
}

func (f *File) NATSSubject() string {
	return get(f, func(c *RawFileConfig) *string { return c.NATSSubject })
}

func (f *File) MetricsEnabled() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.MetricsEnabled })
}

func (f *File) SetListen(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Listen = &s
}

func (f *File) SetAPIKeys(keys map[string]int) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.APIKeys = maps.Clone(keys)
}

func (f *File) SetAdminKey(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AdminKey = &s
}

func (f *File) SetMaxKeyUsage(i int) {
	if f.c == nil {
		panic("config is nil")
	}

	if i < 0 {
		panic("max key usage cannot be negative")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.MaxKeyUsage = &i
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.env = envOverrides()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (c *RawFileConfig) validate() error {
	if c.HistoryBackend != nil {
		switch strings.ToLower(*c.HistoryBackend) {
		case BackendMemory, BackendRedis, BackendPostgres:
		default:
			return pkgerrors.Errorf("unknown history backend %q", *c.HistoryBackend)
		}
	}
	if c.MaxKeyUsage != nil && *c.MaxKeyUsage < 0 {
		return pkgerrors.Errorf("maxKeyUsage cannot be negative, got %d", *c.MaxKeyUsage)
	}
	if c.RateLimitRPS != nil && *c.RateLimitRPS < 0 {
		return pkgerrors.Errorf("rateLimitRPS cannot be negative, got %v", *c.RateLimitRPS)
	}
	if c.RateLimitBurst != nil && *c.RateLimitBurst < 1 {
		return pkgerrors.Errorf("rateLimitBurst must be at least 1, got %d", *c.RateLimitBurst)
	}
	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

// LogrusFields leaves out secrets.
func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"listen":             f.Listen(),
		"apiKeys":            len(f.APIKeys()),
		"adminKeySet":        f.AdminKey() != "",
		"maxKeyUsage":        f.MaxKeyUsage(),
		"usageResetSchedule": f.UsageResetSchedule(),
		"strictAuth":         f.StrictAuth(),
		"historyBackend":     f.HistoryBackend(),
		"registryTable":      f.RegistryTable(),
		"rateLimitRPS":       f.RateLimitRPS(),
		"mqtt":               f.MQTTURL() != "",
		"nats":               f.NATSURL() != "",
		"metricsEnabled":     f.MetricsEnabled(),
	}
}
