package moderation

import (
	"fmt"

	"listentogether/internal/configs"
)

// Open builds the Store selected by cfg.ModerationDriver.
func Open(cfg *configs.AppConfig) (Store, error) {
	switch cfg.ModerationDriver {
	case configs.ModerationMemory:
		return NewMemoryStore(), nil
	case configs.ModerationSQLite:
		return OpenSQLiteStore(cfg.SQLitePath)
	case configs.ModerationPostgres:
		return OpenPostgresStore(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unknown moderation driver %q", cfg.ModerationDriver)
	}
}
