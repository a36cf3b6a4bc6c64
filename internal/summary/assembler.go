package summary

import "moonpulse/internal/domain"

// Assemble builds the generation request for one analyzed series.
func Assemble(query, symbol string, analysis domain.AnalysisResult) domain.SummaryRequest {
	return domain.SummaryRequest{
		OriginalQuery: query,
		Symbol:        symbol,
		AnalyzedData:  FormatAnalysis(analysis),
		Instructions:  instructions,
		Examples:      append([]string(nil), examples...),
		Constraints:   append([]string(nil), constraints...),
	}
}
