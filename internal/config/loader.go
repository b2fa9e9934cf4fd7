package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the tool.
// Zero values mean "unspecified" and will be replaced by defaults in the CLI layer.
type Config struct {
	Addr           string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir      string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	LlamaCppDir    string `json:"llama_cpp_dir" yaml:"llama_cpp_dir" toml:"llama_cpp_dir"`
	HFEndpoint     string `json:"hf_endpoint" yaml:"hf_endpoint" toml:"hf_endpoint"`
	HFToken        string `json:"hf_token" yaml:"hf_token" toml:"hf_token"`
	GPUBackend     string `json:"gpu_backend" yaml:"gpu_backend" toml:"gpu_backend"`
	CtxSize        int    `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	DefaultOuttype string `json:"default_outtype" yaml:"default_outtype" toml:"default_outtype"`
	MaxActiveJobs  int    `json:"max_active_jobs" yaml:"max_active_jobs" toml:"max_active_jobs"`
	PythonBin      string `json:"python_bin" yaml:"python_bin" toml:"python_bin"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
