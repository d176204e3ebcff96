package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"jetfakes/domain/core"
	"jetfakes/domain/fraction"
	"jetfakes/domain/histogram"
	"jetfakes/domain/sample"
	"jetfakes/internal/errors"
	"jetfakes/ports"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// audit kinds in bin_audit
const (
	auditClamp      = "clamp"
	auditDegenerate = "degenerate"
)

// FractionRepository implements ports.FractionStore over sqlx
type FractionRepository struct {
	db *sqlx.DB
}

var _ ports.FractionStore = (*FractionRepository)(nil)

// NewFractionRepository wraps an open, migrated database
func NewFractionRepository(db *sqlx.DB) *FractionRepository {
	return &FractionRepository{db: db}
}

// OpenFractionRepository opens a store and applies the schema
func OpenFractionRepository(ctx context.Context, driver, dsn string) (*FractionRepository, error) {
	db, err := Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	return NewFractionRepository(db), nil
}

type runRow struct {
	RunID       string `db:"run_id"`
	Channel     string `db:"channel"`
	Period      string `db:"period"`
	Suffix      string `db:"suffix"`
	Tree        string `db:"tree"`
	Fingerprint string `db:"fingerprint"`
	CreatedAt   string `db:"created_at"`
}

func (r runRow) info() (fraction.RunInfo, error) {
	created, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return fraction.RunInfo{}, fmt.Errorf("run %s has invalid created_at %q: %w", r.RunID, r.CreatedAt, err)
	}
	return fraction.RunInfo{
		RunID:       core.RunID(r.RunID),
		Channel:     r.Channel,
		Period:      r.Period,
		Suffix:      r.Suffix,
		Tree:        r.Tree,
		Fingerprint: core.Hash(r.Fingerprint),
		CreatedAt:   core.NewTimestamp(created),
	}, nil
}

type histogramRow struct {
	Key      string `db:"hist_key"`
	Group    string `db:"grp"`
	Category string `db:"category"`
	Payload  string `db:"payload"`
}

type summaryRow struct {
	Category    string  `db:"category"`
	Group       string  `db:"grp"`
	Integral    float64 `db:"integral"`
	Fraction    float64 `db:"fraction"`
	Denominator float64 `db:"denominator"`
}

type auditRow struct {
	Kind     string  `db:"kind"`
	Category string  `db:"category"`
	XBin     int     `db:"x_bin"`
	YBin     int     `db:"y_bin"`
	RawValue float64 `db:"raw_value"`
}

// Save writes the run and every surface in a single transaction
func (r *FractionRepository) Save(ctx context.Context, info fraction.RunInfo, set *fraction.Set) error {
	if info.RunID == "" {
		info.RunID = core.NewRunID()
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = core.Now()
	}
	if info.Fingerprint.IsEmpty() {
		info.Fingerprint = set.Fingerprint()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.StorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO runs (
		run_id, channel, period, suffix, tree, fingerprint, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		info.RunID.String(), info.Channel, info.Period, info.Suffix, info.Tree,
		info.Fingerprint.String(), info.CreatedAt.Time().UTC().Format(timeLayout),
	)
	if err != nil {
		return errors.StorageError("failed to insert run", err)
	}

	histStmt := tx.Rebind(`INSERT INTO histograms (run_id, hist_key, grp, category, payload) VALUES (?, ?, ?, ?, ?)`)
	for _, g := range sample.AllGroups {
		for _, c := range sample.AllCategories {
			surface, err := set.Surface(g, c)
			if err != nil {
				return err
			}
			payload, err := encodeSurface(surface)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, histStmt, info.RunID.String(), fraction.Key(g, c), string(g), string(c), payload); err != nil {
				return errors.StorageError(fmt.Sprintf("failed to insert histogram %s", fraction.Key(g, c)), err)
			}
		}
	}

	sumStmt := tx.Rebind(`INSERT INTO summaries (run_id, category, grp, integral, fraction, denominator) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, sm := range set.Summaries {
		for _, g := range sample.AllGroups {
			if _, err := tx.ExecContext(ctx, sumStmt, info.RunID.String(), string(sm.Category), string(g),
				sm.Integrals[g], sm.Fractions[g], sm.Denominator); err != nil {
				return errors.StorageError("failed to insert summary", err)
			}
		}
	}

	auditStmt := tx.Rebind(`INSERT INTO bin_audit (run_id, seq, kind, category, x_bin, y_bin, raw_value) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	seq := 0
	for _, c := range set.Clamps {
		if _, err := tx.ExecContext(ctx, auditStmt, info.RunID.String(), seq, auditClamp, string(c.Category), c.Bin.X, c.Bin.Y, c.RawValue); err != nil {
			return errors.StorageError("failed to insert clamp record", err)
		}
		seq++
	}
	for _, d := range set.Degenerate {
		if _, err := tx.ExecContext(ctx, auditStmt, info.RunID.String(), seq, auditDegenerate, string(d.Category), d.Bin.X, d.Bin.Y, 0.0); err != nil {
			return errors.StorageError("failed to insert degenerate record", err)
		}
		seq++
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("failed to commit run", err)
	}
	return nil
}

// Load returns the most recent run of channel/period
func (r *FractionRepository) Load(ctx context.Context, channel, period string) (*fraction.Set, *fraction.RunInfo, error) {
	row, err := r.latest(ctx, channel, period)
	if err != nil {
		return nil, nil, err
	}
	return r.loadRun(ctx, row)
}

// Latest returns the metadata of the most recent run of channel/period
// without loading its surfaces.
func (r *FractionRepository) Latest(ctx context.Context, channel, period string) (*fraction.RunInfo, error) {
	row, err := r.latest(ctx, channel, period)
	if err != nil {
		return nil, err
	}
	info, err := row.info()
	if err != nil {
		return nil, errors.StorageError("corrupt run record", err)
	}
	return &info, nil
}

func (r *FractionRepository) latest(ctx context.Context, channel, period string) (runRow, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT run_id, channel, period, suffix, tree, fingerprint, created_at
		FROM runs WHERE channel = ? AND period = ?
		ORDER BY created_at DESC, run_id DESC LIMIT 1`), channel, period)
	if err != nil {
		if err == sql.ErrNoRows {
			return row, fmt.Errorf("%w: %s %s", core.ErrRunNotFound, channel, period)
		}
		return row, errors.StorageError("failed to query runs", err)
	}
	return row, nil
}

// LoadRun returns one run by ID
func (r *FractionRepository) LoadRun(ctx context.Context, runID core.RunID) (*fraction.Set, *fraction.RunInfo, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT run_id, channel, period, suffix, tree, fingerprint, created_at
		FROM runs WHERE run_id = ?`), runID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
		}
		return nil, nil, errors.StorageError("failed to query runs", err)
	}
	return r.loadRun(ctx, row)
}

func (r *FractionRepository) loadRun(ctx context.Context, row runRow) (*fraction.Set, *fraction.RunInfo, error) {
	info, err := row.info()
	if err != nil {
		return nil, nil, errors.StorageError("corrupt run record", err)
	}
	set := fraction.NewSet(info.Channel, info.Period, info.Tree)

	var hists []histogramRow
	if err := r.db.SelectContext(ctx, &hists, r.db.Rebind(`SELECT hist_key, grp, category, payload
		FROM histograms WHERE run_id = ? ORDER BY hist_key`), row.RunID); err != nil {
		return nil, nil, errors.StorageError("failed to query histograms", err)
	}
	for _, h := range hists {
		g, err := sample.ParseGroup(h.Group)
		if err != nil {
			return nil, nil, errors.StorageError(fmt.Sprintf("histogram %s", h.Key), err)
		}
		c, err := sample.ParseCategory(h.Category)
		if err != nil {
			return nil, nil, errors.StorageError(fmt.Sprintf("histogram %s", h.Key), err)
		}
		surface, err := decodeSurface(h.Payload)
		if err != nil {
			return nil, nil, errors.StorageError(fmt.Sprintf("histogram %s", h.Key), err)
		}
		set.Put(g, c, surface)
	}

	summaries, err := r.loadSummaries(ctx, row.RunID)
	if err != nil {
		return nil, nil, err
	}
	set.Summaries = summaries

	var audits []auditRow
	if err := r.db.SelectContext(ctx, &audits, r.db.Rebind(`SELECT kind, category, x_bin, y_bin, raw_value
		FROM bin_audit WHERE run_id = ? ORDER BY seq`), row.RunID); err != nil {
		return nil, nil, errors.StorageError("failed to query bin audit", err)
	}
	for _, a := range audits {
		bin := histogram.Bin{X: a.XBin, Y: a.YBin}
		switch a.Kind {
		case auditClamp:
			set.Clamps = append(set.Clamps, fraction.ClampRecord{
				Category: sample.Category(a.Category),
				Clamp:    histogram.Clamp{Bin: bin, RawValue: a.RawValue},
			})
		case auditDegenerate:
			set.Degenerate = append(set.Degenerate, fraction.DegenerateRecord{Category: sample.Category(a.Category), Bin: bin})
		}
	}

	if got := set.Fingerprint(); got != info.Fingerprint {
		return nil, nil, errors.StorageError(fmt.Sprintf("run %s fingerprint mismatch", info.RunID),
			fmt.Errorf("stored %s, recomputed %s", info.Fingerprint, got))
	}
	return set, &info, nil
}

// loadSummaries rebuilds summaries in category processing order
func (r *FractionRepository) loadSummaries(ctx context.Context, runID string) ([]fraction.Summary, error) {
	var rows []summaryRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT category, grp, integral, fraction, denominator
		FROM summaries WHERE run_id = ?`), runID); err != nil {
		return nil, errors.StorageError("failed to query summaries", err)
	}
	byCat := make(map[sample.Category]*fraction.Summary)
	for _, row := range rows {
		c := sample.Category(row.Category)
		sm, ok := byCat[c]
		if !ok {
			sm = &fraction.Summary{
				Category:    c,
				Denominator: row.Denominator,
				Integrals:   make(map[sample.Group]float64),
				Fractions:   make(map[sample.Group]float64),
			}
			byCat[c] = sm
		}
		sm.Integrals[sample.Group(row.Group)] = row.Integral
		sm.Fractions[sample.Group(row.Group)] = row.Fraction
	}
	var out []fraction.Summary
	for _, c := range sample.AllCategories {
		if sm, ok := byCat[c]; ok {
			out = append(out, *sm)
		}
	}
	return out, nil
}

// ListRuns lists every stored run, newest first
func (r *FractionRepository) ListRuns(ctx context.Context) ([]fraction.RunInfo, error) {
	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT run_id, channel, period, suffix, tree, fingerprint, created_at
		FROM runs ORDER BY created_at DESC, run_id DESC`); err != nil {
		return nil, errors.StorageError("failed to list runs", err)
	}
	out := make([]fraction.RunInfo, 0, len(rows))
	for _, row := range rows {
		info, err := row.info()
		if err != nil {
			return nil, errors.StorageError("corrupt run record", err)
		}
		out = append(out, info)
	}
	return out, nil
}

// Close releases the database handle
func (r *FractionRepository) Close() error {
	return r.db.Close()
}
