package middleware

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bryanwahyu/medreport/internal/domain/reports"
)

// Input validation and sanitization utilities

const maxFilename = 255

// ValidateUploadName checks a client supplied filename for an accepted extension and safe characters.
func ValidateUploadName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if len(name) > maxFilename {
		return fmt.Errorf("filename too long (max %d chars)", maxFilename)
	}
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == ".." || strings.HasPrefix(base, ".") {
		return fmt.Errorf("invalid filename %q", name)
	}
	for _, d := range []string{"\x00", "\n", "\r"} {
		if strings.Contains(name, d) {
			return fmt.Errorf("invalid characters in filename")
		}
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv", ".xlsx":
		return nil
	}
	return fmt.Errorf("unsupported file type %q (allowed: .csv, .xlsx)", filepath.Ext(base))
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit clamps a history page size. Zero lets the service pick its default.
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 0
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// ParseReportID parses a positive report ID from a URL segment.
func ParseReportID(s string) (reports.ID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid report id %q", s)
	}
	return reports.ID(id), nil
}

// ParseSections maps section titles to known sections.
func ParseSections(titles []string) ([]reports.Section, error) {
	out := make([]reports.Section, 0, len(titles))
	for _, t := range titles {
		sec, ok := reports.ParseSection(t)
		if !ok {
			return nil, fmt.Errorf("unknown report section %q", t)
		}
		out = append(out, sec)
	}
	return out, nil
}
