// Package db holds what the report store drivers share: JSON column encoding, search text and LIKE escaping.
package db

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/medreport/internal/domain/reports"
)

// DefaultSearchLimit caps Search when the caller passes no limit.
const DefaultSearchLimit = 50

// EncodeColumns renders the JSON columns of a report.
func EncodeColumns(r *reports.Report) (analysisJSON, metaJSON []byte, err error) {
	if analysisJSON, err = json.Marshal(r.Analysis); err != nil {
		return nil, nil, fmt.Errorf("encode analysis_results: %w", err)
	}
	if metaJSON, err = json.Marshal(r.Metadata); err != nil {
		return nil, nil, fmt.Errorf("encode metadata: %w", err)
	}
	return analysisJSON, metaJSON, nil
}

// SearchText is what Search matches besides the filename: the findings of the stored result,
// one per line.
func SearchText(r *reports.Report) string {
	return r.Analysis.Text()
}

// DecodeColumns fills the JSON-backed fields of r. A stored result that breaks the
// Success/Failure invariants is an error.
func DecodeColumns(r *reports.Report, analysisJSON, metaJSON []byte) error {
	if err := json.Unmarshal(analysisJSON, &r.Analysis); err != nil {
		return fmt.Errorf("report %d: decode analysis_results: %w", r.ID, err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &r.Metadata); err != nil {
			return fmt.Errorf("report %d: decode metadata: %w", r.ID, err)
		}
	}
	return nil
}

// LikePattern wraps q for a substring LIKE match with backslash as the escape character.
func LikePattern(q string) string {
	// Escape backslash first, then other LIKE special characters
	q = strings.ReplaceAll(q, `\`, `\\`)
	q = strings.ReplaceAll(q, "%", `\%`)
	q = strings.ReplaceAll(q, "_", `\_`)
	return "%" + q + "%"
}

// Limit normalizes a caller-supplied limit.
func Limit(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
