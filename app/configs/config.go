package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Config struct {
	Agent  AgentConfig  `json:"agent"`
	LLM    LLMConfig    `json:"llm"`
	Engine EngineConfig `json:"engine"`
	HTTP   HTTPConfig   `json:"http"`
}

type AgentConfig struct {
	Name      string `json:"name"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	CLIUserID string `json:"cli_user_id"`
}

type LLMConfig struct {
	Enabled   bool   `json:"enabled"`
	Model     string `json:"model"`
	BaseURL   string `json:"base_url"`
	APIKeyEnv string `json:"api_key_env"`
}

type EngineConfig struct {
	FuzzyThreshold    int `json:"fuzzy_threshold"`
	ResolveConfidence int `json:"resolve_confidence"`
	MaxMessageLen     int `json:"max_message_len"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type Manager struct {
	path string
	mu   sync.RWMutex
	cfg  Config
}

func DefaultPath() string {
	return filepath.Join("config", "config.json")
}

func NewManager(path string) (*Manager, error) {
	mgr := &Manager{
		path: path,
		cfg:  defaultConfig(),
	}
	if err := mgr.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if err := mgr.save(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Update(apply func(*Config)) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	apply(&m.cfg)
	applyDefaults(&m.cfg)
	if err := m.saveLocked(); err != nil {
		return Config{}, err
	}
	return m.cfg, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}
	m.cfg = fileCfg
	applyDefaults(&m.cfg)
	return nil
}

func (m *Manager) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

func defaultConfig() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Agent.Name) == "" {
		cfg.Agent.Name = "TaskTalk"
	}
	if strings.TrimSpace(cfg.Agent.DataDir) == "" {
		cfg.Agent.DataDir = "data"
	}
	if strings.TrimSpace(cfg.Agent.LogDir) == "" {
		cfg.Agent.LogDir = "logs"
	}
	if strings.TrimSpace(cfg.Agent.CLIUserID) == "" {
		cfg.Agent.CLIUserID = "local_user"
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if strings.TrimSpace(cfg.LLM.APIKeyEnv) == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Engine.FuzzyThreshold <= 0 {
		cfg.Engine.FuzzyThreshold = 60
	}
	if cfg.Engine.ResolveConfidence <= 0 {
		cfg.Engine.ResolveConfidence = 80
	}
	if cfg.Engine.MaxMessageLen <= 0 {
		cfg.Engine.MaxMessageLen = 10000
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
}
