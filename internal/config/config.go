package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/synth"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/spf13/viper"
)

const (
	FileName = "orgseed.config.json"

	defaultInstanceURLEnv = "ORG_INSTANCE_URL"
	defaultTokenEnv       = "ORG_ACCESS_TOKEN"
	defaultStateURLEnv    = "ORGSEED_STATE_URL"
	defaultAPIVersion     = "60.0"
)

var (
	remoteProviders = []string{"sandbox", "rest"}
	stateProviders  = []string{"file", "memory", "sqlite", "sqlite3", "postgres", "postgresql", "mysql", "redis", "mongodb", "mongo"}
)

type Config struct {
	Version       string           `json:"version" mapstructure:"version"`
	Remote        Remote           `json:"remote" mapstructure:"remote"`
	State         State            `json:"state" mapstructure:"state"`
	LogDir        string           `json:"log_dir" mapstructure:"log_dir"`
	Run           Run              `json:"run" mapstructure:"run"`
	Entities      []Entity         `json:"entities" mapstructure:"entities"`
	Overrides     []synth.Override `json:"overrides,omitempty" mapstructure:"overrides"`
	ExcludeFields []string         `json:"exclude_fields,omitempty" mapstructure:"exclude_fields"`
}

type Remote struct {
	Provider       string `json:"provider" mapstructure:"provider"`
	FixturesDir    string `json:"fixtures_dir,omitempty" mapstructure:"fixtures_dir"`
	InstanceURLEnv string `json:"instance_url_env,omitempty" mapstructure:"instance_url_env"`
	TokenEnv       string `json:"token_env,omitempty" mapstructure:"token_env"`
	APIVersion     string `json:"api_version,omitempty" mapstructure:"api_version"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`
}

type State struct {
	Provider string `json:"provider" mapstructure:"provider"`
	URLEnv   string `json:"url_env,omitempty" mapstructure:"url_env"`
	Dir      string `json:"dir,omitempty" mapstructure:"dir"` // file provider only
}

type Run struct {
	DefaultCount int   `json:"default_count" mapstructure:"default_count"`
	PauseMs      int   `json:"pause_ms" mapstructure:"pause_ms"`
	SuspendRules bool  `json:"suspend_rules" mapstructure:"suspend_rules"`
	Parallelism  int   `json:"parallelism" mapstructure:"parallelism"`
	Seed         int64 `json:"seed" mapstructure:"seed"`
}

type Entity struct {
	Name     string `json:"name" mapstructure:"name"`
	Enabled  *bool  `json:"enabled,omitempty" mapstructure:"enabled"` // unset means enabled
	Count    int    `json:"count,omitempty" mapstructure:"count"`
	Priority int    `json:"priority,omitempty" mapstructure:"priority"`
}

func (e Entity) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v and applies defaults.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.Remote.Provider == "" {
		cfg.Remote.Provider = "sandbox"
	}
	if cfg.Remote.InstanceURLEnv == "" {
		cfg.Remote.InstanceURLEnv = defaultInstanceURLEnv
	}
	if cfg.Remote.TokenEnv == "" {
		cfg.Remote.TokenEnv = defaultTokenEnv
	}
	if cfg.Remote.APIVersion == "" {
		cfg.Remote.APIVersion = defaultAPIVersion
	}
	if cfg.Remote.TimeoutSeconds == 0 {
		cfg.Remote.TimeoutSeconds = 60
	}
	if cfg.State.Provider == "" {
		cfg.State.Provider = "file"
	}
	if cfg.State.URLEnv == "" {
		cfg.State.URLEnv = defaultStateURLEnv
	}
	if cfg.State.Dir == "" {
		cfg.State.Dir = filepath.Join(".orgseed", "state")
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "orgseed-logs"
	}
	if cfg.Run.DefaultCount == 0 {
		cfg.Run.DefaultCount = 10
	}
	if !v.IsSet("run.pause_ms") {
		cfg.Run.PauseMs = 500
	}
	if !v.IsSet("run.suspend_rules") {
		cfg.Run.SuspendRules = true
	}
	if cfg.Run.Parallelism == 0 {
		cfg.Run.Parallelism = 1
	}

	return &cfg, nil
}

func DefaultConfig() *Config {
	cfg, _ := LoadFrom(viper.New())
	cfg.Remote.FixturesDir = "fixtures"
	cfg.Entities = []Entity{
		{Name: "Account", Count: 10},
		{Name: "Contact", Count: 25},
		{Name: "Opportunity", Count: 15},
	}
	return cfg
}

func (c *Config) Validate() error {
	if !contains(remoteProviders, c.Remote.Provider) {
		return fmt.Errorf("unsupported remote provider: %s. Supported providers: %v", c.Remote.Provider, remoteProviders)
	}
	if !contains(stateProviders, c.State.Provider) {
		return fmt.Errorf("unsupported state provider: %s. Supported providers: %v", c.State.Provider, stateProviders)
	}
	if c.LogDir == "" {
		return fmt.Errorf("log_dir cannot be empty")
	}
	if c.Run.DefaultCount < 0 {
		return fmt.Errorf("run.default_count cannot be negative")
	}
	if c.Run.PauseMs < 0 {
		return fmt.Errorf("run.pause_ms cannot be negative")
	}
	if c.Run.Parallelism < 0 {
		return fmt.Errorf("run.parallelism cannot be negative")
	}

	seen := make(map[string]bool, len(c.Entities))
	for i, e := range c.Entities {
		if e.Name == "" {
			return fmt.Errorf("entities[%d] has no name", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("entity %s is listed twice", e.Name)
		}
		seen[e.Name] = true
		if e.Count < 0 {
			return fmt.Errorf("entity %s: count cannot be negative", e.Name)
		}
	}

	for _, o := range c.Overrides {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetRemoteCredentials reads the REST instance URL and token from the
// environment.
func (c *Config) GetRemoteCredentials() (instanceURL, token string, err error) {
	instanceURL = os.Getenv(c.Remote.InstanceURLEnv)
	if instanceURL == "" {
		return "", "", fmt.Errorf("instance URL not found in environment variable %s", c.Remote.InstanceURLEnv)
	}
	token = os.Getenv(c.Remote.TokenEnv)
	if token == "" {
		return "", "", fmt.Errorf("access token not found in environment variable %s", c.Remote.TokenEnv)
	}
	return instanceURL, token, nil
}

// GetStateURL returns the location handed to the state store: the
// directory for the file provider, the connection URL otherwise.
func (c *Config) GetStateURL() (string, error) {
	switch c.State.Provider {
	case "file":
		return c.State.Dir, nil
	case "memory":
		return "", nil
	}
	url := os.Getenv(c.State.URLEnv)
	if url == "" {
		return "", fmt.Errorf("state store URL not found in environment variable %s", c.State.URLEnv)
	}
	return url, nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

func (c *Config) Pause() time.Duration {
	return time.Duration(c.Run.PauseMs) * time.Millisecond
}

// GenerationConfigs turns the entity list into generation configs in
// declared order. A non-empty counts map selects exactly its entity types;
// a positive count replaces the configured one. Names the config does not
// list are appended.
func (c *Config) GenerationConfigs(counts map[string]int) []types.GenerationConfig {
	var configs []types.GenerationConfig
	listed := make(map[string]bool, len(c.Entities))

	for _, e := range c.Entities {
		listed[e.Name] = true
		gc := types.GenerationConfig{
			EntityType:        e.Name,
			Enabled:           e.IsEnabled(),
			TargetRecordCount: e.Count,
			LoadPriority:      e.Priority,
		}
		if gc.TargetRecordCount == 0 {
			gc.TargetRecordCount = c.Run.DefaultCount
		}
		if len(counts) > 0 {
			n, ok := counts[e.Name]
			gc.Enabled = ok
			if n > 0 {
				gc.TargetRecordCount = n
			}
		}
		configs = append(configs, gc)
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		if !listed[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		n := counts[name]
		if n <= 0 {
			n = c.Run.DefaultCount
		}
		configs = append(configs, types.GenerationConfig{EntityType: name, Enabled: true, TargetRecordCount: n})
	}
	return configs
}

// SelectedEntities lists the enabled entity names in declared order.
func (c *Config) SelectedEntities() []string {
	var names []string
	for _, e := range c.Entities {
		if e.IsEnabled() {
			names = append(names, e.Name)
		}
	}
	return names
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.LogDir}
	if c.State.Provider == "file" {
		dirs = append(dirs, c.State.Dir)
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Save writes c as indented JSON. An existing file is left alone.
func (c *Config) Save(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
