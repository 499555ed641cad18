package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all flowdesigner configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath          string `json:"db_path"`
	LogLevel        string `json:"log_level"`
	LogFormat       string `json:"log_format"`
	ProvidersFile   string `json:"providers_file"`
	DescriptorsFile string `json:"descriptors_file"`
	GridColor       string `json:"grid_color"`
}

func defaultConfig() Config {
	return Config{
		DBPath:    filepath.Join(flowdesignerDir(), "flowdesigner.db"),
		LogLevel:  "info",
		LogFormat: "text",
		GridColor: "#e5e5e5",
	}
}

func flowdesignerDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowdesigner"
	}
	return filepath.Join(home, ".flowdesigner")
}

func settingsPath() string {
	return filepath.Join(flowdesignerDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	for env, field := range map[string]*string{
		"FLOWDESIGNER_DB_PATH":          &cfg.DBPath,
		"FLOWDESIGNER_LOG_LEVEL":        &cfg.LogLevel,
		"FLOWDESIGNER_LOG_FORMAT":       &cfg.LogFormat,
		"FLOWDESIGNER_PROVIDERS_FILE":   &cfg.ProvidersFile,
		"FLOWDESIGNER_DESCRIPTORS_FILE": &cfg.DescriptorsFile,
		"FLOWDESIGNER_GRID_COLOR":       &cfg.GridColor,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}

	return cfg
}
