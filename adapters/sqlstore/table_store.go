package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"jetfakes/domain/core"
	"jetfakes/domain/table"
	"jetfakes/internal/errors"
	"jetfakes/ports"
)

// PreFakesFile is the exported event table read by the weight applier
const PreFakesFile = "pre_jetFakes.db"

// schemaTable records the exact dtype of every column of every event table,
// since sqlite column affinity alone cannot tell int32 from int64.
const schemaTable = "schema_columns"

type schemaRow struct {
	Table    string `db:"tbl"`
	Position int    `db:"position"`
	table.Column
}

// WriteTable writes tbl into a fresh sqlite file at path, replacing any
// existing file only once the new one is complete.
func WriteTable(ctx context.Context, path string, tbl *table.Table) error {
	if tbl.Tree == "" {
		return core.NewSchemaMismatchError(tbl.Sample, "table has no tree name")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.StorageError("failed to create table directory", err)
	}
	tmp := path + ".partial"
	os.Remove(tmp)

	if err := writeTableFile(ctx, tmp, tbl); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.StorageError(fmt.Sprintf("failed to move table into %s", path), err)
	}
	return nil
}

func writeTableFile(ctx context.Context, path string, tbl *table.Table) error {
	db, err := openPlainSQLite(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.StorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+schemaTable+` (
		tbl TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		dtype TEXT NOT NULL,
		PRIMARY KEY (tbl, position)
	)`); err != nil {
		return errors.StorageError("failed to create schema table", err)
	}

	cols := make([]string, len(tbl.Schema))
	marks := make([]string, len(tbl.Schema))
	for i, c := range tbl.Schema {
		cols[i] = fmt.Sprintf("%s %s", quoteIdent(c.Name), sqliteType(c.Type))
		marks[i] = "?"
		if _, err := tx.ExecContext(ctx, `INSERT INTO `+schemaTable+` (tbl, position, name, dtype) VALUES (?, ?, ?, ?)`,
			tbl.Tree, i, c.Name, string(c.Type)); err != nil {
			return errors.StorageError("failed to record column dtype", err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(tbl.Tree), strings.Join(cols, ", "))); err != nil {
		return errors.StorageError(fmt.Sprintf("failed to create table %s", tbl.Tree), err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(tbl.Tree), strings.Join(marks, ", ")))
	if err != nil {
		return errors.StorageError("failed to prepare insert", err)
	}
	defer stmt.Close()

	args := make([]interface{}, len(tbl.Schema))
	for r, row := range tbl.Rows {
		for c, cell := range row {
			v, err := cellValue(tbl.Schema[c].Type, cell)
			if err != nil {
				return core.NewSchemaMismatchError(tbl.Sample, fmt.Sprintf("row %d column %s: %v", r, tbl.Schema[c].Name, err))
			}
			args[c] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.StorageError(fmt.Sprintf("failed to insert row %d", r), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("failed to commit table", err)
	}
	return nil
}

// ReadTable reads the event table named tree from a sqlite file. A missing
// file yields core.ErrMissingInput.
func ReadTable(ctx context.Context, path, sampleName, tree string) (*table.Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, core.NewMissingInputError("", sampleName, path)
	}
	db, err := openPlainSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	schema, err := readSchema(ctx, db, tree)
	if err != nil {
		return nil, core.NewSchemaMismatchError(sampleName, err.Error())
	}

	names := make([]string, len(schema))
	for i, c := range schema {
		names[i] = quoteIdent(c.Name)
	}
	rows, err := db.QueryxContext(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), quoteIdent(tree)))
	if err != nil {
		return nil, errors.StorageError(fmt.Sprintf("failed to read %s from %s", tree, path), err)
	}
	defer rows.Close()

	tbl := &table.Table{Sample: sampleName, Tree: tree, Schema: schema}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, errors.StorageError("failed to scan row", err)
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			if row[i], err = cellText(schema[i].Type, v); err != nil {
				return nil, core.NewSchemaMismatchError(sampleName, fmt.Sprintf("row %d column %s: %v", len(tbl.Rows), schema[i].Name, err))
			}
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("failed to iterate rows", err)
	}
	return tbl, nil
}

// ListTables lists the table names of a sqlite file, excluding bookkeeping tables
func ListTables(ctx context.Context, path string) ([]string, error) {
	db, err := openPlainSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var names []string
	if err := db.SelectContext(ctx, &names, `SELECT name FROM sqlite_master WHERE type = 'table' AND name != ? ORDER BY name`, schemaTable); err != nil {
		return nil, errors.StorageError(fmt.Sprintf("failed to list tables of %s", path), err)
	}
	return names, nil
}

func readSchema(ctx context.Context, db *sqlx.DB, tree string) (table.Schema, error) {
	var rows []schemaRow
	err := db.SelectContext(ctx, &rows, `SELECT tbl, position, name, dtype FROM `+schemaTable+` WHERE tbl = ? ORDER BY position`, tree)
	if err != nil {
		return nil, fmt.Errorf("no column dtypes recorded: %v", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no table %s", tree)
	}
	schema := make(table.Schema, len(rows))
	for i, r := range rows {
		if _, err := table.ParseColumnType(string(r.Type)); err != nil {
			return nil, fmt.Errorf("column %s: %v", r.Name, err)
		}
		schema[i] = r.Column
	}
	return schema, nil
}

func sqliteType(ct table.ColumnType) string {
	if ct.IsFloat() {
		return "REAL"
	}
	return "INTEGER"
}

func cellValue(ct table.ColumnType, cell string) (interface{}, error) {
	if ct == table.Int32 || ct == table.Int64 {
		return strconv.ParseInt(strings.TrimSpace(cell), 10, ct.BitSize())
	}
	v, err := table.ParseCell(ct, cell)
	if err != nil {
		return nil, err
	}
	if ct.IsFloat() {
		return v, nil
	}
	return int64(v), nil
}

func cellText(ct table.ColumnType, v interface{}) (string, error) {
	var f float64
	switch x := v.(type) {
	case int64:
		if ct == table.Int32 || ct == table.Int64 {
			return strconv.FormatInt(x, 10), nil
		}
		f = float64(x)
	case float64:
		f = x
	case []byte:
		return cellText(ct, string(x))
	case string:
		return strings.TrimSpace(x), nil
	case nil:
		return "", fmt.Errorf("null value")
	default:
		return "", fmt.Errorf("unexpected value type %T", v)
	}
	return table.FormatCell(ct, f), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableExporter writes the pre-fakes event table into a staging directory
type TableExporter struct {
	path string
}

var _ ports.TableExporter = (*TableExporter)(nil)

// NewTableExporter exports into <stagingDir>/pre_jetFakes.db
func NewTableExporter(stagingDir string) *TableExporter {
	return &TableExporter{path: filepath.Join(stagingDir, PreFakesFile)}
}

// Export writes tbl under its tree name
func (e *TableExporter) Export(ctx context.Context, tbl *table.Table) error {
	return WriteTable(ctx, e.path, tbl)
}

// Path is the exported file
func (e *TableExporter) Path() string { return e.path }
