package steps

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModelStyleCount = 10
	DefaultWebStyleCount   = 10
	DefaultShortlistSize   = 5
)

//go:embed style_config.yaml
var defaultStyleConfig []byte

// StyleConfig holds the style discovery tunables.
type StyleConfig struct {
	Search struct {
		Domains  []string `yaml:"domains"`
		MaxPages int      `yaml:"max_pages"`
	} `yaml:"search"`
	Extract struct {
		Tags         []string `yaml:"tags"`
		ChunkSize    int      `yaml:"chunk_size"`
		ChunkOverlap int      `yaml:"chunk_overlap"`
	} `yaml:"extract"`
	Counts struct {
		Model     int `yaml:"model"`
		Web       int `yaml:"web"`
		Shortlist int `yaml:"shortlist"`
	} `yaml:"counts"`
}

// LoadStyleConfig parses the embedded defaults, then overlays the file at path when path is set.
func LoadStyleConfig(path string) (StyleConfig, error) {
	var cfg StyleConfig
	if err := yaml.Unmarshal(defaultStyleConfig, &cfg); err != nil {
		return StyleConfig{}, fmt.Errorf("embedded style config: %w", err)
	}
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return StyleConfig{}, fmt.Errorf("read style config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return StyleConfig{}, fmt.Errorf("parse style config %s: %w", path, err)
		}
	}
	cfg.normalize()
	return cfg, nil
}

func (c *StyleConfig) normalize() {
	if c.Search.MaxPages <= 0 {
		c.Search.MaxPages = 5
	}
	if len(c.Extract.Tags) == 0 {
		c.Extract.Tags = []string{"span"}
	}
	if c.Extract.ChunkSize <= 0 {
		c.Extract.ChunkSize = 1000
	}
	if c.Extract.ChunkOverlap < 0 || c.Extract.ChunkOverlap >= c.Extract.ChunkSize {
		c.Extract.ChunkOverlap = 0
	}
	if c.Counts.Model <= 0 {
		c.Counts.Model = DefaultModelStyleCount
	}
	if c.Counts.Web <= 0 {
		c.Counts.Web = DefaultWebStyleCount
	}
	if c.Counts.Shortlist <= 0 {
		c.Counts.Shortlist = DefaultShortlistSize
	}
}
