// Package config resolves local settings from defaults, a paperproducer.yaml file, .env files and
// PAPERPRODUCER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/csheth/paperproducer/internal/report"
	"github.com/csheth/paperproducer/internal/workflow"
)

const (
	EnvPrefix = "PAPERPRODUCER"
	FileName  = "paperproducer"
)

// Settings is the resolved local configuration.
type Settings struct {
	Server      string         `mapstructure:"server" yaml:"server"`
	Timeout     time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	Flow        string         `mapstructure:"flow" yaml:"flow"`
	Reveal      RevealSettings `mapstructure:"reveal" yaml:"reveal"`
	Generation  report.Options `mapstructure:"generation" yaml:"generation"`
	DownloadDir string         `mapstructure:"download_dir" yaml:"download_dir"`
	HistoryDB   string         `mapstructure:"history_db" yaml:"history_db"`
	LogFile     string         `mapstructure:"log_file" yaml:"log_file"`
	Logbook     string         `mapstructure:"logbook" yaml:"logbook"`
}

// RevealSettings paces the staggered presentation of papers.
type RevealSettings struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Epilogue time.Duration `mapstructure:"epilogue" yaml:"epilogue"`
}

var defaults = map[string]any{
	"server":                     "http://localhost:8000",
	"timeout":                    "5m",
	"flow":                       string(workflow.FlowTwoStage),
	"reveal.interval":            "400ms",
	"reveal.epilogue":            "600ms",
	"generation.llm_model":       "gpt-4o-mini",
	"generation.embedding_model": "",
	"generation.indexer_type":    "vector",
	"generation.top_papers":      5,
	"download_dir":               "./reports",
	"history_db":                 "~/.local/share/paperproducer/history.db",
	"log_file":                   "",
	"logbook":                    "",
}

// Keys lists every recognised setting in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// KnownKey reports whether key is a recognised setting.
func KnownKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

// SetDefaults registers the built-in value of every key on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Init prepares v: defaults, config file search paths (or cfgFile when set) and environment binding.
// A missing config file is not an error. It returns the config file in use, if any.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// LoadDotEnv exports the variables of the given .env files (default ./.env) without overriding the
// environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decoding config: %w", err)
	}
	s.Server = strings.TrimRight(strings.TrimSpace(s.Server), "/")
	s.DownloadDir = expandHome(s.DownloadDir)
	s.HistoryDB = expandHome(s.HistoryDB)
	s.LogFile = expandHome(s.LogFile)
	s.Logbook = expandHome(s.Logbook)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the invariants the rest of the program relies on.
func (s *Settings) Validate() error {
	if s.Server == "" {
		return errors.New("server must be set")
	}
	flow, err := workflow.ParseFlow(s.Flow)
	if err != nil {
		return err
	}
	s.Flow = string(flow)
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", s.Timeout)
	}
	if s.Reveal.Interval < 0 || s.Reveal.Epilogue < 0 {
		return fmt.Errorf("reveal delays must not be negative, got interval=%s epilogue=%s", s.Reveal.Interval, s.Reveal.Epilogue)
	}
	if s.Generation.TopPapers <= 0 {
		return fmt.Errorf("generation.top_papers must be positive, got %d", s.Generation.TopPapers)
	}
	if strings.TrimSpace(s.Generation.LLMModel) == "" {
		return errors.New("generation.llm_model must be set")
	}
	if strings.TrimSpace(s.Generation.IndexerType) == "" {
		return errors.New("generation.indexer_type must be set")
	}
	return nil
}

// WorkflowFlow returns the validated flow.
func (s Settings) WorkflowFlow() workflow.Flow {
	flow, err := workflow.ParseFlow(s.Flow)
	if err != nil {
		return workflow.FlowTwoStage
	}
	return flow
}

// Set stores value under key after checking that the result still validates, then writes the
// configuration to path.
func Set(v *viper.Viper, key, value, path string) error {
	if !KnownKey(key) {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	previous := v.Get(key)
	v.Set(key, value)
	if _, err := Load(v); err != nil {
		v.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DefaultPath is where `config set` writes when no config file was found.
func DefaultPath() string {
	return FileName + ".yaml"
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
