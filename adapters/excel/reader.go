package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jetfakes/domain/core"
	"jetfakes/domain/table"
	"jetfakes/internal"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading per-sample Excel and CSV event stores
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a reader; the file type follows the extension
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: logger}
}

// Keys lists the sheet names of a workbook. CSV files have no keys.
func (r *DataReader) Keys() ([]string, error) {
	if r.fileType == "csv" {
		return nil, nil
	}
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadTable reads one sample's store. For workbooks the sheet named tree is
// read; CSV files hold a single table.
func (r *DataReader) ReadTable(sampleName, tree string) (*table.Table, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, core.NewMissingInputError("", sampleName, r.filePath)
	}

	var data *ExcelData
	var err error
	switch r.fileType {
	case "csv":
		data, err = r.readCSVData()
	case "xlsx":
		data, err = r.readExcelData(tree)
	default:
		err = fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, core.NewSchemaMismatchError(sampleName, err.Error())
	}

	schema, err := table.ParseHeader(data.Headers)
	if err != nil {
		return nil, core.NewSchemaMismatchError(sampleName, err.Error())
	}
	return &table.Table{Sample: sampleName, Tree: tree, Schema: schema, Rows: data.Rows}, nil
}

// readExcelData reads the sheet named tree
func (r *DataReader) readExcelData(tree string) (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", tree, err)
	}
	r.logger.Trace("[DataReader] sheet %s of %s read in %.2fms (%d rows)", tree, r.filePath,
		float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	if len(rows) < 1 {
		return nil, fmt.Errorf("sheet %s has no header row", tree)
	}
	return r.processRows(rows), nil
}

// readCSVData reads a CSV file
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.logger.Trace("[DataReader] CSV file %s read in %.2fms (%d rows)", r.filePath,
		float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 1 {
		return nil, fmt.Errorf("CSV file has no header row")
	}
	return r.processRows(rows), nil
}

// processRows splits off the header and pads rows to its width. Workbooks
// drop trailing empty cells; padding keeps them visible to validation.
func (r *DataReader) processRows(rows [][]string) *ExcelData {
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		cells := make([]string, len(headers))
		for j := range cells {
			if j < len(row) {
				cells[j] = strings.TrimSpace(row[j])
			}
		}
		dataRows = append(dataRows, cells)
	}
	return &ExcelData{Headers: headers, Rows: dataRows}
}
