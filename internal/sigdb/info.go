package sigdb

import (
	"fmt"
	"os"

	"github.com/blang/semver/v4"
	"gopkg.in/yaml.v3"
)

// Info is the optional viruscan.info header of a signature directory.
type Info struct {
	Version   int    `yaml:"version"`
	MinEngine string `yaml:"min_engine"`
	Built     string `yaml:"built"`
}

// LoadInfo reads a YAML header file.
func LoadInfo(path string) (*Info, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := yaml.Unmarshal(b, &info); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if info.MinEngine != "" {
		if _, err := semver.ParseTolerant(info.MinEngine); err != nil {
			return nil, fmt.Errorf("%s: invalid min_engine %q: %w", path, info.MinEngine, err)
		}
	}
	return &info, nil
}

// CheckEngine fails when the database needs a newer engine than version.
// A nil Info or an empty min_engine accepts any engine.
func (i *Info) CheckEngine(version string) error {
	if i == nil || i.MinEngine == "" {
		return nil
	}
	need, err := semver.ParseTolerant(i.MinEngine)
	if err != nil {
		return err
	}
	have, err := semver.ParseTolerant(version)
	if err != nil {
		return fmt.Errorf("engine version %q: %w", version, err)
	}
	if have.LT(need) {
		return fmt.Errorf("signature database requires engine %s or newer, have %s", need, have)
	}
	return nil
}
