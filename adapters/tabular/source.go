// Package tabular reads per-sample event stores from one input directory.
// Each sample lives in <dir>/<sample>.<ext> with ext csv, xlsx or db.
package tabular

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"jetfakes/adapters/excel"
	"jetfakes/adapters/sqlstore"
	"jetfakes/domain/core"
	"jetfakes/domain/sample"
	"jetfakes/domain/table"
	"jetfakes/internal"
	"jetfakes/ports"
)

// Supported store formats
const (
	FormatCSV    = "csv"
	FormatXLSX   = "xlsx"
	FormatSQLite = "sqlite"
)

// DirectorySource implements ports.EventSource over a directory
type DirectorySource struct {
	dir        string
	format     string
	channel    string
	classifier *sample.Classifier
	logger     *internal.Logger

	treeOnce sync.Once
	tree     string
	treeErr  error
}

var _ ports.EventSource = (*DirectorySource)(nil)

// NewDirectorySource creates a source. channel is required for CSV stores,
// which carry no tree name.
func NewDirectorySource(dir, format, channel string, logger *internal.Logger) (*DirectorySource, error) {
	switch format {
	case FormatCSV, FormatXLSX, FormatSQLite:
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, core.NewMissingInputError("", "", dir)
	}
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &DirectorySource{
		dir:        dir,
		format:     format,
		channel:    channel,
		classifier: sample.DefaultClassifier(),
		logger:     logger,
	}, nil
}

// Path returns the store file of a sample
func (s *DirectorySource) Path(name string) string {
	ext := s.format
	if ext == FormatSQLite {
		ext = "db"
	}
	return filepath.Join(s.dir, name+"."+ext)
}

// Tree detects the event tree from the data store's keys. CSV stores use
// the configured channel instead.
func (s *DirectorySource) Tree(ctx context.Context) (string, error) {
	s.treeOnce.Do(func() {
		s.tree, s.treeErr = s.detectTree(ctx)
		if s.treeErr == nil {
			s.logger.Debug("input %s holds %s", s.dir, s.tree)
		}
	})
	return s.tree, s.treeErr
}

func (s *DirectorySource) detectTree(ctx context.Context) (string, error) {
	path := s.Path(sample.DataSample)
	var keys []string
	var err error
	switch s.format {
	case FormatCSV:
		return table.TreeForChannel(s.channel)
	case FormatXLSX:
		if _, statErr := os.Stat(path); statErr != nil {
			return "", core.NewMissingInputError(string(sample.GroupData), sample.DataSample, path)
		}
		keys, err = excel.NewDataReader(path, s.logger).Keys()
	case FormatSQLite:
		if _, statErr := os.Stat(path); statErr != nil {
			return "", core.NewMissingInputError(string(sample.GroupData), sample.DataSample, path)
		}
		keys, err = sqlstore.ListTables(ctx, path)
	}
	if err != nil {
		return "", err
	}
	tree, err := table.ParseTreeName(keys)
	if err != nil {
		return "", err
	}
	if s.channel != "" && table.ChannelPrefix(tree) != s.channel {
		return "", fmt.Errorf("%w: %s holds %s, channel %s configured", core.ErrTreeNotFound, path, tree, s.channel)
	}
	return tree, nil
}

// Load reads one sample's store
func (s *DirectorySource) Load(ctx context.Context, name string) (*table.Table, error) {
	tree, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	path := s.Path(name)
	if _, err := os.Stat(path); err != nil {
		group, _ := s.classifier.Classify(name)
		return nil, core.NewMissingInputError(string(group), name, path)
	}

	var tbl *table.Table
	switch s.format {
	case FormatSQLite:
		tbl, err = sqlstore.ReadTable(ctx, path, name, tree)
	default:
		tbl, err = excel.NewDataReader(path, s.logger).ReadTable(name, tree)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded %s: %d rows, %d columns", path, tbl.Len(), len(tbl.Schema))
	return tbl, nil
}

// WriteStore writes tbl as <dir>/<sample>.<ext> in the given format
func WriteStore(ctx context.Context, dir, format string, tbl *table.Table) error {
	src := &DirectorySource{dir: dir, format: format}
	path := src.Path(tbl.Sample)
	switch format {
	case FormatCSV:
		return excel.WriteCSV(path, tbl)
	case FormatXLSX:
		return excel.WriteXLSX(path, tbl)
	case FormatSQLite:
		return sqlstore.WriteTable(ctx, path, tbl)
	}
	return fmt.Errorf("unsupported input format %q", format)
}
