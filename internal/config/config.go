package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	DefaultBaudRate       = 57600
	DefaultSamples        = 4
	DefaultProgrammer     = "avrdude"
	DefaultProgrammerPort = "usb0"
	DefaultHexDir         = "hex"
	DefaultFlashRetries   = 1
	DefaultTopicPrefix    = "chipcheck"

	// DirName is the per-root state directory holding config, history and logs.
	DirName = ".chipcheck"
)

// MQTTConfig enables outcome publishing when Broker is set.
type MQTTConfig struct {
	Broker      string `json:"broker,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	TopicPrefix string `json:"topic_prefix,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// Config holds all chipcheck configuration.
type Config struct {
	UnitPort       string     `json:"unit_port,omitempty"`
	SerialBaudRate int        `json:"serial_baud_rate,omitempty"`
	Samples        int        `json:"samples,omitempty"`
	CompanionPort  string     `json:"companion_port,omitempty"`
	Programmer     string     `json:"programmer,omitempty"`
	ProgrammerPort string     `json:"programmer_port,omitempty"`
	HexDir         string     `json:"hex_dir,omitempty"`
	ToolDir        string     `json:"tool_dir,omitempty"`
	FlashRetries   int        `json:"flash_retries,omitempty"`
	Station        string     `json:"station,omitempty"`
	MQTT           MQTTConfig `json:"mqtt"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		SerialBaudRate: DefaultBaudRate,
		Samples:        DefaultSamples,
		Programmer:     DefaultProgrammer,
		ProgrammerPort: DefaultProgrammerPort,
		HexDir:         DefaultHexDir,
		FlashRetries:   DefaultFlashRetries,
		MQTT:           MQTTConfig{TopicPrefix: DefaultTopicPrefix},
	}
}

// StateDir is the state directory under root.
func StateDir(root string) string {
	return filepath.Join(root, DirName)
}

// Load reads and merges global and root configs.
// Order: defaults → global (~/.config/chipcheck/config.json) → root (.chipcheck/config.json).
func Load(root string) Config {
	cfg := Defaults()

	// Global config
	if home, err := os.UserHomeDir(); err == nil {
		globalPath := filepath.Join(home, ".config", "chipcheck", "config.json")
		mergeFromFile(&cfg, globalPath)
	}

	// Root config
	if root != "" {
		mergeFromFile(&cfg, filepath.Join(StateDir(root), "config.json"))
	}

	return cfg
}

// Save writes the config to <root>/.chipcheck/config.json by default,
// or to the global config if global is true.
func Save(cfg Config, root string, global bool) error {
	var dir string
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, ".config", "chipcheck")
	} else {
		dir = StateDir(root)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o600)
}

func mergeFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return
	}

	if fileCfg.UnitPort != "" {
		cfg.UnitPort = fileCfg.UnitPort
	}
	if fileCfg.SerialBaudRate != 0 {
		cfg.SerialBaudRate = fileCfg.SerialBaudRate
	}
	if fileCfg.Samples != 0 {
		cfg.Samples = fileCfg.Samples
	}
	if fileCfg.CompanionPort != "" {
		cfg.CompanionPort = fileCfg.CompanionPort
	}
	if fileCfg.Programmer != "" {
		cfg.Programmer = fileCfg.Programmer
	}
	if fileCfg.ProgrammerPort != "" {
		cfg.ProgrammerPort = fileCfg.ProgrammerPort
	}
	if fileCfg.HexDir != "" {
		cfg.HexDir = fileCfg.HexDir
	}
	if fileCfg.ToolDir != "" {
		cfg.ToolDir = fileCfg.ToolDir
	}
	if fileCfg.FlashRetries != 0 {
		cfg.FlashRetries = fileCfg.FlashRetries
	}
	if fileCfg.Station != "" {
		cfg.Station = fileCfg.Station
	}
	mergeMQTT(&cfg.MQTT, fileCfg.MQTT)
}

func mergeMQTT(dst *MQTTConfig, src MQTTConfig) {
	if src.Broker != "" {
		dst.Broker = src.Broker
	}
	if src.ClientID != "" {
		dst.ClientID = src.ClientID
	}
	if src.TopicPrefix != "" {
		dst.TopicPrefix = src.TopicPrefix
	}
	if src.Username != "" {
		dst.Username = src.Username
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
}
