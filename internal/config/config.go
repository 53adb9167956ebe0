package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir  string `toml:"state_dir" json:"state_dir"`
	LogDir    string `toml:"log_dir" json:"log_dir"`
	OutputDir string `toml:"output_dir" json:"output_dir"`
}

// Render contains configuration for the offline frame renderer and encoder.
type Render struct {
	FPS           int    `toml:"fps" json:"fps"`
	VideoCodec    string `toml:"video_codec" json:"video_codec"`
	PixelFormat   string `toml:"pixel_format" json:"pixel_format"`
	CRF           int    `toml:"crf" json:"crf"`
	KeepAudio     bool   `toml:"keep_audio" json:"keep_audio"`
	PreviewWidth  int    `toml:"preview_width" json:"preview_width"`
	PreviewHeight int    `toml:"preview_height" json:"preview_height"`
}

// Tools contains external binary locations.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg" json:"ffmpeg"`
	FFprobe string `toml:"ffprobe" json:"ffprobe"`
}

// Archive contains configuration for the optional AV1 re-encode of finished renders.
type Archive struct {
	Enabled   bool   `toml:"enabled" json:"enabled"`
	OutputDir string `toml:"output_dir" json:"output_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" json:"format"`
	Level  string `toml:"level" json:"level"`
}

// Config encapsulates all configuration values for reelforge.
//
// Configuration sections by subsystem:
//   - Paths: state (job database, lock file), logs, default render output
//   - Render: frame rate, encoder settings, default preview viewport
//   - Tools: ffmpeg/ffprobe binaries
//   - Archive: optional AV1 re-encode of finished renders
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths" json:"paths"`
	Render  Render  `toml:"render" json:"render"`
	Tools   Tools   `toml:"tools" json:"tools"`
	Archive Archive `toml:"archive" json:"archive"`
	Logging Logging `toml:"logging" json:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state, log, and output directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Archive.Enabled && strings.TrimSpace(c.Archive.OutputDir) != "" {
		if err := os.MkdirAll(c.Archive.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create archive directory %q: %w", c.Archive.OutputDir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for decoding and encoding frames.
func (c *Config) FFmpegBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFmpeg) == "" {
		return defaultFFmpeg
	}
	return c.Tools.FFmpeg
}

// FFprobeBinary returns the ffprobe executable used to inspect source videos.
func (c *Config) FFprobeBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFprobe) == "" {
		return defaultFFprobe
	}
	return c.Tools.FFprobe
}

// JobDatabasePath returns the location of the render history database.
func (c *Config) JobDatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// ArchiveStagingDir holds in-progress archive encodes.
func (c *Config) ArchiveStagingDir() string {
	return filepath.Join(c.Paths.StateDir, "archive-staging")
}

// LockPath returns the location of the single-render lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "render.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// Sample returns the annotated sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
