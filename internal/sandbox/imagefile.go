package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ImageFile is the on-disk form of an ImageSpec. Empty fields fall back to
// the values of the spec it is applied to.
type ImageFile struct {
	Base       string   `yaml:"base" toml:"base"`
	Apt        []string `yaml:"apt" toml:"apt"`
	Pip        []string `yaml:"pip" toml:"pip"`
	LocalDir   string   `yaml:"local_dir" toml:"local_dir"`
	RemotePath string   `yaml:"remote_path" toml:"remote_path"`
}

// LoadImageFile reads an image description from a .yaml, .yml or .toml file.
func LoadImageFile(path string) (*ImageFile, error) {
	var f ImageFile

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("parsing image file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading image file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing image file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("image file %s: unsupported extension %q", path, ext)
	}

	return &f, nil
}

// Apply overlays the file onto spec. Package lists in the file replace the
// spec's lists rather than extending them.
func (f *ImageFile) Apply(spec ImageSpec) ImageSpec {
	out := NewImage(spec.Base())
	if f.Base != "" {
		out = NewImage(f.Base)
	}

	apt := spec.SystemPackages()
	if f.Apt != nil {
		apt = f.Apt
	}
	pip := spec.LanguagePackages()
	if f.Pip != nil {
		pip = f.Pip
	}

	m := spec.Mount()
	if f.LocalDir != "" {
		m.LocalDir = f.LocalDir
	}
	if f.RemotePath != "" {
		m.RemotePath = f.RemotePath
	}

	return out.AptInstall(apt...).PipInstall(pip...).AddLocalDir(m.LocalDir, m.RemotePath)
}
