// Package project persists an editing session: the source video, the preview
// viewport overlays are authored against, and the overlays themselves.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"reelforge/internal/fileutil"
	"reelforge/internal/overlay"
	"reelforge/internal/placement"
	"reelforge/internal/services"
)

// CurrentVersion is the project file format version written by Save.
const CurrentVersion = 1

// Preview is the viewport size overlays are positioned in.
type Preview struct {
	Width  float64 `toml:"width" json:"width"`
	Height float64 `toml:"height" json:"height"`
}

// Project is the on-disk document.
type Project struct {
	Version    int               `toml:"version" json:"version"`
	Source     string            `toml:"source" json:"source"`
	Preview    Preview           `toml:"preview" json:"preview"`
	NextZIndex int               `toml:"next_z_index" json:"next_z_index"`
	Overlays   []overlay.Overlay `toml:"overlays" json:"overlays"`

	path string
}

// Init creates a new project file at path. It refuses to overwrite an existing
// file.
func Init(path, source string, preview Preview) (*Project, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "project", "init", "project path is empty", nil)
	}
	if strings.TrimSpace(source) == "" {
		return nil, services.Wrap(services.ErrValidation, "project", "init", "source video is required", nil)
	}
	if preview.Width <= 0 || preview.Height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "project", "init", fmt.Sprintf("invalid preview size %gx%g", preview.Width, preview.Height), nil)
	}
	if _, err := os.Stat(path); err == nil {
		return nil, services.Wrap(services.ErrValidation, "project", "init", fmt.Sprintf("%s already exists", path), nil)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat project: %w", err)
	}

	p := &Project{
		Version: CurrentVersion,
		Source:  source,
		Preview: preview,
		path:    path,
	}
	if err := p.Save(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads and validates the project at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "project", "load", path, err)
		}
		return nil, fmt.Errorf("read project: %w", err)
	}
	var p Project
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, services.Wrap(services.ErrValidation, "project", "parse", path, err)
	}
	if p.Version == 0 {
		p.Version = CurrentVersion
	}
	if p.Version > CurrentVersion {
		return nil, services.Wrap(services.ErrValidation, "project", "load", fmt.Sprintf("unsupported project version %d", p.Version), nil)
	}
	if strings.TrimSpace(p.Source) == "" {
		return nil, services.Wrap(services.ErrValidation, "project", "load", "source video is required", nil)
	}
	if p.Preview.Width <= 0 || p.Preview.Height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "project", "load", fmt.Sprintf("invalid preview size %gx%g", p.Preview.Width, p.Preview.Height), nil)
	}
	p.path = path
	return &p, nil
}

// Path returns the file the project was loaded from or initialised at.
func (p *Project) Path() string {
	return p.path
}

// SourcePath resolves the source video relative to the project file.
func (p *Project) SourcePath() string {
	src := strings.TrimSpace(p.Source)
	if src == "" || filepath.IsAbs(src) || p.path == "" {
		return src
	}
	return filepath.Join(filepath.Dir(p.path), src)
}

// ResolvePath resolves an overlay asset path relative to the project file.
func (p *Project) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || p.path == "" {
		return path
	}
	return filepath.Join(filepath.Dir(p.path), path)
}

// Viewport returns the preview size as a placement viewport.
func (p *Project) Viewport() placement.Viewport {
	return placement.Viewport{Width: p.Preview.Width, Height: p.Preview.Height}
}

// Set rebuilds the editable overlay collection.
func (p *Project) Set() *overlay.Set {
	return overlay.Restore(p.Overlays, p.NextZIndex)
}

// Apply stores the contents of s back into the project.
func (p *Project) Apply(s *overlay.Set) {
	p.Overlays = s.All()
	p.NextZIndex = s.NextZIndex()
}

// Validate checks every overlay against the source duration.
func (p *Project) Validate(sourceDuration float64) error {
	seen := make(map[string]struct{}, len(p.Overlays))
	for _, o := range p.Overlays {
		if _, dup := seen[o.ID]; dup {
			return services.Wrap(services.ErrValidation, "project", "validate", fmt.Sprintf("duplicate overlay id %s", o.ID), nil)
		}
		seen[o.ID] = struct{}{}
		if err := o.Validate(sourceDuration); err != nil {
			return services.Wrap(services.ErrValidation, "project", "validate", "", err)
		}
	}
	return nil
}

// Save writes the project atomically to its path.
func (p *Project) Save() error {
	if p.path == "" {
		return errors.New("project has no path")
	}
	if p.Version == 0 {
		p.Version = CurrentVersion
	}
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	if err := fileutil.WriteFileAtomic(p.path, data, 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	return nil
}
