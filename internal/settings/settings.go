package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the local, per-device configuration. It is read once at startup.
// JSON blobs are accepted as well since they parse as YAML.
type Settings struct {
	ShowChunkBorders bool    `yaml:"show_chunk_borders"`
	ModifyScaleSize  float64 `yaml:"modify_scale_size"`

	BackendURL string `yaml:"backend_url"`
	StorageURL string `yaml:"storage_url"`

	FPS                  int `yaml:"fps"`
	OptimisticCooldownMs int `yaml:"optimistic_cooldown_ms"`
}

// camelKeys maps the web client's settings blob keys onto the YAML names.
var camelKeys = map[string]string{
	"showChunkBorders":     "show_chunk_borders",
	"modifyScaleSize":      "modify_scale_size",
	"backendUrl":           "backend_url",
	"storageUrl":           "storage_url",
	"optimisticCooldownMs": "optimistic_cooldown_ms",
}

// UnmarshalYAML accepts both key spellings. Giving the same setting under
// both is a duplicate key error.
func (s *Settings) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if k, ok := camelKeys[n.Content[i].Value]; ok {
				n.Content[i].Value = k
			}
		}
	}
	type plain Settings
	return n.Decode((*plain)(s))
}

func Defaults() Settings {
	return Settings{
		ModifyScaleSize:      1,
		BackendURL:           "http://localhost:8080",
		StorageURL:           "http://localhost:8080/storage",
		FPS:                  60,
		OptimisticCooldownMs: 150,
	}
}

// Load reads path over the defaults. A missing file yields Defaults().
func Load(path string) (Settings, error) {
	s := Defaults()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Defaults(), fmt.Errorf("settings %s: %w", path, err)
	}
	return s.normalize(), nil
}

func (s Settings) normalize() Settings {
	d := Defaults()
	if s.ModifyScaleSize <= 0 {
		s.ModifyScaleSize = d.ModifyScaleSize
	}
	if s.FPS <= 0 {
		s.FPS = d.FPS
	}
	if s.OptimisticCooldownMs < 0 {
		s.OptimisticCooldownMs = 0
	}
	return s
}

func (s Settings) FrameInterval() time.Duration {
	if s.FPS <= 0 {
		return time.Second / time.Duration(Defaults().FPS)
	}
	return time.Second / time.Duration(s.FPS)
}

func (s Settings) OptimisticCooldown() time.Duration {
	return time.Duration(s.OptimisticCooldownMs) * time.Millisecond
}
