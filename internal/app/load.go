package app

import (
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/config"
	"github.com/specialistvlad/rendergraph/internal/producer"
)

// load reads the frame description and instantiates its executors.
func (a *App) load(loader config.Loader) error {
	a.logger.Debug("Loading frame description...", "path", a.config.FramePath)

	model, converter, err := loader.Load(a.ctx, a.config.FramePath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.logger.Debug("Configuration loaded and translated into unified model.")

	a.producer, err = producer.New(a.ctx, model, a.registry, converter)
	if err != nil {
		return fmt.Errorf("failed to prepare frame description: %w", err)
	}
	a.logger.Info("Frame description loaded.",
		"views", len(model.Views),
		"modules", len(model.Modules),
		"textures", len(model.Textures),
		"buffers", len(model.Buffers),
	)
	return nil
}
