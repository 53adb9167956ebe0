package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.FPS < 1 || c.Render.FPS > 120 {
		return fmt.Errorf("render.fps must be between 1 and 120, got %d", c.Render.FPS)
	}
	if c.Render.CRF < 0 || c.Render.CRF > 63 {
		return fmt.Errorf("render.crf must be between 0 and 63, got %d", c.Render.CRF)
	}
	if c.Render.PreviewWidth <= 0 || c.Render.PreviewHeight <= 0 {
		return errors.New("render.preview_width and render.preview_height must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
