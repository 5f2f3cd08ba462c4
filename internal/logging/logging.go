// Package logging builds the zap logger shared by both binaries.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a production logger when production is set and a development
// logger otherwise, both filtered at level.
func New(production bool, level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewDevelopmentConfig()
	if production {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}
