package main

import (
	"log/slog"

	"reelforge/internal/logging"
)

// dragTrace logs pointer capture for a replayed drag.
type dragTrace struct {
	logger *slog.Logger
	id     string
}

func (d *dragTrace) Attach() {
	d.logger.Debug("pointer captured", logging.String("overlay_id", d.id))
}

func (d *dragTrace) Detach() {
	d.logger.Debug("pointer released", logging.String("overlay_id", d.id))
}
