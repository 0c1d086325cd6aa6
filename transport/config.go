package transport

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/wukong-cloud/metainfo/internal/discovery"
	"github.com/wukong-cloud/metainfo/internal/register"
	"github.com/wukong-cloud/metainfo/util/logx"
	"gopkg.in/yaml.v2"
)

const (
	defaultReadBufSize = 8192
	defaultMaxInvoke   = 10000
	envPrefix          = "METAINFO"
)

// Durations are written in the file as integer milliseconds.
type Config struct {
	DiscoverConfig *discovery.DiscoverConfig `yaml:"discover"`
	RegisterConfig *register.RegisterConfig  `yaml:"register"`
	ServerConfigs  []*ServerConfig           `yaml:"server-config"`
	ClientConfig   *ClientConfig             `yaml:"client-config"`
	MetaInfoConfig *MetaInfoConfig           `yaml:"metainfo"`
}

type ServerConfig struct {
	Name           string        `yaml:"name"`
	IP             string        `yaml:"ip"`
	Port           string        `yaml:"port"`
	MaxInvoke      int32         `yaml:"max-invoke"`
	ReadBufferSize int32         `yaml:"read-buffer-size"`
	InvokeTimeout  time.Duration `yaml:"invoke-timeout"`
}

func (c *ServerConfig) Addr() string {
	return c.IP + ":" + c.Port
}

type ClientConfig struct {
	RequestTimeout time.Duration `yaml:"request-timeout"`
	ReadBufferSize int32         `yaml:"read-buffer-size"`
	Thread         int           `yaml:"thread"`
	MaxIdleTime    time.Duration `yaml:"max-idle-time"`
	EncodeType     string        `yaml:"encode-type"`
	ReTry          int           `yaml:"retry"`
}

type MetaInfoConfig struct {
	// HeaderStyle is the key format clients write: rpc (RPC_PERSIST_X) or
	// http (rpc-persist-x).
	HeaderStyle string `yaml:"header-style"`
	// AssignLogID makes clients set a LOG_ID persistent when none is present.
	AssignLogID bool `yaml:"assign-log-id"`
	// HashKey names the persistent used for consistent hash routing.
	HashKey string `yaml:"hash-key"`
}

// envOverrides are read from METAINFO_* variables after the file.
type envOverrides struct {
	DiscoverName   string        `envconfig:"DISCOVER_NAME"`
	DiscoverHosts  string        `envconfig:"DISCOVER_HOSTS"`
	RegisterName   string        `envconfig:"REGISTER_NAME"`
	RegisterHosts  string        `envconfig:"REGISTER_HOSTS"`
	EncodeType     string        `envconfig:"ENCODE_TYPE"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT"`
	HeaderStyle    string        `envconfig:"HEADER_STYLE"`
	AssignLogID    string        `envconfig:"ASSIGN_LOG_ID"`
}

var (
	_cfg  *Config
	cfgMu sync.RWMutex
)

// GetConfig returns the config set by InitConfig or SetConfig, or the
// defaults when none was loaded.
func GetConfig() *Config {
	cfgMu.RLock()
	cfg := _cfg
	cfgMu.RUnlock()
	if cfg != nil {
		return cfg
	}
	cfgMu.Lock()
	defer cfgMu.Unlock()
	if _cfg == nil {
		_cfg = DefaultConfig()
	}
	return _cfg
}

func SetConfig(cfg *Config) {
	cfgMu.Lock()
	_cfg = cfg
	cfgMu.Unlock()
}

func InitConfig(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	SetConfig(cfg)
	return nil
}

func GetServerConfig(name string) *ServerConfig {
	cfg := GetConfig()
	for _, c := range cfg.ServerConfigs {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func GetClientConfig() *ClientConfig {
	return GetConfig().ClientConfig
}

func GetMetaInfoConfig() *MetaInfoConfig {
	return GetConfig().MetaInfoConfig
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cc := cfg.ClientConfig; cc != nil {
		cc.RequestTimeout = parseTimeout(cc.RequestTimeout)
		cc.MaxIdleTime = parseTimeout(cc.MaxIdleTime)
	}
	for _, sc := range cfg.ServerConfigs {
		sc.InvokeTimeout = parseTimeout(sc.InvokeTimeout)
	}
	fillDefaults(cfg)

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	logx.Log(logx.Kv("message", "config loaded"), logx.Kv("servers", len(cfg.ServerConfigs)), logx.Kv("header-style", cfg.MetaInfoConfig.HeaderStyle))
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		ClientConfig:   defaultClientConfig(),
		MetaInfoConfig: defaultMetaInfoConfig(),
	}
}

func defaultClientConfig() *ClientConfig {
	return &ClientConfig{
		RequestTimeout: 60 * time.Second,
		ReadBufferSize: defaultReadBufSize,
		MaxIdleTime:    2 * time.Hour,
		Thread:         1,
		EncodeType:     EncoderJSON,
		ReTry:          1,
	}
}

func defaultMetaInfoConfig() *MetaInfoConfig {
	return &MetaInfoConfig{
		HeaderStyle: string(StyleRPC),
		HashKey:     ConsistentHashKey,
	}
}

func fillDefaults(cfg *Config) {
	if cfg.ClientConfig == nil {
		cfg.ClientConfig = defaultClientConfig()
	}
	if cfg.MetaInfoConfig == nil {
		cfg.MetaInfoConfig = defaultMetaInfoConfig()
	}
	cc := cfg.ClientConfig
	if cc.RequestTimeout <= 0 {
		cc.RequestTimeout = 60 * time.Second
	}
	if cc.MaxIdleTime <= 0 {
		cc.MaxIdleTime = 2 * time.Hour
	}
	if cc.ReadBufferSize <= 0 {
		cc.ReadBufferSize = defaultReadBufSize
	}
	if cc.Thread <= 0 {
		cc.Thread = 1
	}
	if cc.EncodeType == "" {
		cc.EncodeType = EncoderJSON
	}
	if cc.ReTry <= 0 {
		cc.ReTry = 1
	}
	mc := cfg.MetaInfoConfig
	mc.HeaderStyle = string(ParseHeaderStyle(mc.HeaderStyle))
	if mc.HashKey == "" {
		mc.HashKey = ConsistentHashKey
	}
	for _, sc := range cfg.ServerConfigs {
		if sc.MaxInvoke <= 0 {
			sc.MaxInvoke = defaultMaxInvoke
		}
		if sc.ReadBufferSize <= 0 {
			sc.ReadBufferSize = defaultReadBufSize
		}
	}
}

// parseTimeout turns a yaml integer, decoded as nanoseconds, into
// milliseconds.
func parseTimeout(d time.Duration) time.Duration {
	return d * time.Millisecond
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	if env.DiscoverHosts != "" {
		if cfg.DiscoverConfig == nil {
			cfg.DiscoverConfig = &discovery.DiscoverConfig{}
		}
		cfg.DiscoverConfig.Hosts = env.DiscoverHosts
	}
	if env.DiscoverName != "" {
		if cfg.DiscoverConfig == nil {
			cfg.DiscoverConfig = &discovery.DiscoverConfig{}
		}
		cfg.DiscoverConfig.Name = env.DiscoverName
	}
	if env.RegisterHosts != "" {
		if cfg.RegisterConfig == nil {
			cfg.RegisterConfig = &register.RegisterConfig{}
		}
		cfg.RegisterConfig.Hosts = env.RegisterHosts
	}
	if env.RegisterName != "" {
		if cfg.RegisterConfig == nil {
			cfg.RegisterConfig = &register.RegisterConfig{}
		}
		cfg.RegisterConfig.Name = env.RegisterName
	}
	if env.EncodeType != "" {
		cfg.ClientConfig.EncodeType = env.EncodeType
	}
	if env.RequestTimeout > 0 {
		cfg.ClientConfig.RequestTimeout = env.RequestTimeout
	}
	if env.HeaderStyle != "" {
		cfg.MetaInfoConfig.HeaderStyle = string(ParseHeaderStyle(env.HeaderStyle))
	}
	if env.AssignLogID != "" {
		v, err := strconv.ParseBool(strings.TrimSpace(env.AssignLogID))
		if err != nil {
			return fmt.Errorf("config env %s_ASSIGN_LOG_ID: %w", envPrefix, err)
		}
		cfg.MetaInfoConfig.AssignLogID = v
	}
	return nil
}
