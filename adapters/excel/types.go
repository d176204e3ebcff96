package excel

// ExcelData represents one sheet or CSV file as raw text
type ExcelData struct {
	Headers []string   // typed header cells, "name:dtype"
	Rows    [][]string // data rows, padded to the header width
}

// SurfaceStats summarizes the populated bins of one surface
type SurfaceStats struct {
	Key    string
	Bins   int
	Min    float64
	Median float64
	Mean   float64
	Max    float64
}
