package excel

// ReportConfig controls the diagnostic workbook layout
type ReportConfig struct {
	NumberFormat  string `json:"number_format"`
	IncludeErrors bool   `json:"include_errors"`
	SummarySheet  string `json:"summary_sheet"`
}

// DefaultReportConfig returns sensible defaults for the diagnostic report
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		NumberFormat:  "0.0000",
		IncludeErrors: true,
		SummarySheet:  "summary",
	}
}
