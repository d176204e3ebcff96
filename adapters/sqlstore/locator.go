package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"jetfakes/domain/core"
	"jetfakes/ports"
)

// Locator maps a run's (channel, period, suffix) onto a fraction store.
// With sqlite3 every run has its own file <dir>/<channel><period>_<suffix>.db;
// with postgres every run shares one database.
type Locator struct {
	driver string
	dsn    string
	dir    string
}

// NewLocator creates a locator. dir is used by sqlite3, dsn by postgres.
func NewLocator(driver, dsn, dir string) *Locator {
	return &Locator{driver: driver, dsn: dsn, dir: dir}
}

// Driver names the backend
func (l *Locator) Driver() string { return l.driver }

// Location is the file path (sqlite3) or DSN (postgres) of a run's store
func (l *Locator) Location(channel, period, suffix string) string {
	if l.driver == DriverPostgres {
		return l.dsn
	}
	return filepath.Join(l.dir, fmt.Sprintf("%s%s_%s.db", channel, period, suffix))
}

// Open opens, creating if needed, the store of a run
func (l *Locator) Open(ctx context.Context, channel, period, suffix string) (ports.FractionStore, error) {
	return OpenFractionRepository(ctx, l.driver, l.Location(channel, period, suffix))
}

// Resolve opens an existing store for reading. An empty suffix picks the
// most recently written sqlite3 file of channel/period.
func (l *Locator) Resolve(ctx context.Context, channel, period, suffix string) (ports.FractionStore, error) {
	if l.driver == DriverPostgres {
		return l.Open(ctx, channel, period, suffix)
	}
	path := l.Location(channel, period, suffix)
	if suffix == "" {
		matches, err := filepath.Glob(filepath.Join(l.dir, fmt.Sprintf("%s%s_*.db", channel, period)))
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: no store for %s %s in %s", core.ErrRunNotFound, channel, period, l.dir)
		}
		path = newest(matches)
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, path)
	}
	return OpenFractionRepository(ctx, l.driver, path)
}

// Stores opens every existing store
func (l *Locator) Stores(ctx context.Context) ([]ports.FractionStore, error) {
	if l.driver == DriverPostgres {
		store, err := OpenFractionRepository(ctx, l.driver, l.dsn)
		if err != nil {
			return nil, err
		}
		return []ports.FractionStore{store}, nil
	}
	matches, err := filepath.Glob(filepath.Join(l.dir, "*.db"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	var stores []ports.FractionStore
	for _, path := range matches {
		store, err := OpenFractionRepository(ctx, l.driver, path)
		if err != nil {
			for _, s := range stores {
				s.Close()
			}
			return nil, err
		}
		stores = append(stores, store)
	}
	return stores, nil
}

func newest(paths []string) string {
	best, bestTime := paths[0], int64(-1)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if t := info.ModTime().UnixNano(); t > bestTime {
			best, bestTime = p, t
		}
	}
	return best
}
