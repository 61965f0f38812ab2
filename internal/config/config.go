package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Wikipedia Wikipedia `yaml:"wikipedia"`
	NLP       NLP       `yaml:"nlp"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Wikipedia struct {
	Language          string  `yaml:"language"`
	UserAgent         string  `yaml:"user_agent"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	AutoSuggest       bool    `yaml:"auto_suggest"`
	// APIURL overrides the per-language endpoint. Empty means
	// https://<language>.wikipedia.org/w/api.php.
	APIURL string `yaml:"api_url"`
}

type NLP struct {
	Backend        string `yaml:"backend"`
	RemoteURL      string `yaml:"remote_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Coreference    bool   `yaml:"coreference"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Server struct {
	Port              int `yaml:"port"`
	SessionTTLMinutes int `yaml:"session_ttl_minutes"`
	MaxSessions       int `yaml:"max_sessions"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for wikigraph.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "wikigraph")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/wikigraph/config.yaml > ./config.yaml.
// When nothing is found it returns an empty path and no error; Load("")
// then yields the built-in defaults.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", nil
}

// Load reads and parses a config YAML file. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Wikipedia: Wikipedia{
			Language:          "en",
			UserAgent:         "WikiGraph/1.0 (knowledge graph demo)",
			TimeoutSeconds:    15,
			RequestsPerSecond: 5,
			AutoSuggest:       true,
		},
		NLP: NLP{
			Backend:        "prose",
			RemoteURL:      "http://localhost:8081",
			APIKeyEnv:      "WIKIGRAPH_NLP_TOKEN",
			Coreference:    true,
			TimeoutSeconds: 120,
		},
		Server: Server{
			Port:              8000,
			SessionTTLMinutes: 30,
			MaxSessions:       256,
		},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Timeout returns the Wikipedia request timeout.
func (w Wikipedia) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// Endpoint returns the MediaWiki API endpoint for the configured language.
func (w Wikipedia) Endpoint() string {
	if w.APIURL != "" {
		return w.APIURL
	}
	lang := w.Language
	if lang == "" {
		lang = "en"
	}
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
}

// Timeout returns the remote annotation timeout.
func (n NLP) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// SessionTTL returns how long an idle browser session is kept.
func (s Server) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLMinutes) * time.Minute
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
