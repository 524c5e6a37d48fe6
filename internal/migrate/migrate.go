// Package migrate applies sequential schema migrations to on-disk data,
// upgrading from one version to the next.
//
// Each schema target owns a [Registry]. The config package keeps one for
// config.toml; there is no global registry.
package migrate

import (
	"fmt"
	"log/slog"
	"sort"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Migration upgrades on-disk data from the prior version to Version.
type Migration struct {
	// Version is the schema version this migration produces.
	Version int
	// Description is a short human-readable label for log output.
	Description string
	// Upgrade transforms data from the prior version to [Migration.Version].
	Upgrade func(data []byte) ([]byte, error)
}

// Registry holds the current version and migrations for one schema target.
type Registry struct {
	// CurrentVersion is the latest schema version that this registry targets.
	CurrentVersion int
	// Migrations is the list of versioned upgrades. Order does not matter;
	// [Run] sorts by version.
	Migrations []Migration
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Run applies migrations sequentially where fromVersion < m.Version.
// Returns the transformed data, final version reached, and any error.
func Run(data []byte, fromVersion int, migrations []Migration) ([]byte, int, error) {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	version := fromVersion
	for _, m := range sorted {
		if version >= m.Version {
			continue
		}
		slog.Info("applying migration", "version", m.Version, "description", m.Description)
		var err error
		data, err = m.Upgrade(data)
		if err != nil {
			return nil, version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
		}
		version = m.Version
	}
	return data, version, nil
}

// Register appends a migration. It panics if the version is already
// registered, since two upgrades to the same version cannot both be right.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: duplicate migration version %d (description: %q)", m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// NeedsMigration reports whether data at fileVersion differs from the
// registry's current version.
func (r *Registry) NeedsMigration(fileVersion int) bool {
	return fileVersion != r.CurrentVersion
}

// Run applies the registry's migrations starting at fromVersion. It fails if
// the data ends up at a version other than CurrentVersion, which means either
// a gap in the migration chain or a file written by a newer release.
func (r *Registry) Run(data []byte, fromVersion int) ([]byte, error) {
	if fromVersion > r.CurrentVersion {
		return nil, fmt.Errorf("schema version %d is newer than supported version %d", fromVersion, r.CurrentVersion)
	}
	out, reached, err := Run(data, fromVersion, r.Migrations)
	if err != nil {
		return nil, err
	}
	if reached != r.CurrentVersion {
		return nil, fmt.Errorf("no migration path from v%d to v%d (stopped at v%d)", fromVersion, r.CurrentVersion, reached)
	}
	return out, nil
}
