package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/venator/internal/common"
)

// Profile is the read-only user snapshot a scrape or processing run operates
// against. It is immutable for the duration of one run.
type Profile struct {
	Name            string            `toml:"name" yaml:"name" validate:"required"`
	Keywords        []string          `toml:"keywords" yaml:"keywords"`
	Skills          []string          `toml:"skills" yaml:"skills"`
	Locations       []string          `toml:"locations" yaml:"locations"`
	SeniorityLevels []string          `toml:"seniority_levels" yaml:"seniority_levels"` // e.g. ["entry", "mid"]
	RemoteOK        bool              `toml:"remote_ok" yaml:"remote_ok"`
	DocumentPaths   map[string]string `toml:"document_paths" yaml:"document_paths"`
}

// profileFileNames are tried in order inside the profile directory.
var profileFileNames = []string{"profile.toml", "profile.yaml", "profile.yml"}

// LoadProfile reads a profile snapshot from <root>/<name>/profile.{toml,yaml}.
// A missing profile directory or file surfaces as KindNotFound so the CLI
// can map it to its own exit code.
func LoadProfile(root, name string) (*Profile, error) {
	const op = "profile.load"

	if name == "" {
		return nil, common.Ef(common.KindInvalid, op, "profile name is empty")
	}

	dir := filepath.Join(root, name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, common.Ef(common.KindNotFound, op, "profile %q not found under %s", name, root)
	}

	for _, fname := range profileFileNames {
		path := filepath.Join(dir, fname)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, common.E(common.KindTransient, op, err)
		}
		return parseProfile(path, data)
	}

	return nil, common.Ef(common.KindNotFound, op, "no profile file in %s", dir)
}

func parseProfile(path string, data []byte) (*Profile, error) {
	const op = "profile.parse"

	var profile Profile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &profile); err != nil {
			return nil, common.Ef(common.KindInvalid, op, "failed to parse %s: %v", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, common.Ef(common.KindInvalid, op, "failed to parse %s: %v", path, err)
		}
	default:
		return nil, common.Ef(common.KindInvalid, op, "unsupported profile format %s", path)
	}

	v := validator.New()
	if err := v.Struct(&profile); err != nil {
		return nil, common.Ef(common.KindInvalid, op, "invalid profile %s: %v", path, err)
	}
	return &profile, nil
}

// StoreDir returns the per-profile store directory under the profile root.
func (p *Profile) StoreDir(root string) string {
	return filepath.Join(root, p.Name, "store")
}

// TargetsSeniority reports whether the profile accepts the given seniority
// level. An empty preference list accepts everything.
func (p *Profile) TargetsSeniority(level string) bool {
	if len(p.SeniorityLevels) == 0 {
		return true
	}
	for _, l := range p.SeniorityLevels {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}

// String returns a short description for logs.
func (p *Profile) String() string {
	return fmt.Sprintf("%s (%d keywords, %d locations)", p.Name, len(p.Keywords), len(p.Locations))
}
