package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"

	"github.com/bryanwahyu/medreport/internal/domain/reports"
)

// Preview is the short report description shown after generation.
type Preview struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

type previewInput struct {
	generated time.Time
	filename  string
	format    reports.Type
	sections  []reports.Section
	records   int
	features  int
	mode      string
}

func buildPreview(in previewInput) Preview {
	var b strings.Builder
	b.WriteString("## Report Preview\n\n")
	fmt.Fprintf(&b, "- **Generated:** %s\n", in.generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **File analyzed:** %s\n", escapeMD(in.filename))
	fmt.Fprintf(&b, "- **Report type:** %s\n\n", titleCase(string(in.format)))
	b.WriteString("### Included Sections\n\n")
	for _, s := range in.sections {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\n### Analysis Summary\n\n")
	fmt.Fprintf(&b, "- Total records analyzed: %s\n", thousands(in.records))
	fmt.Fprintf(&b, "- Features analyzed: %d\n", in.features)
	fmt.Fprintf(&b, "- Analysis depth: %s\n\n", titleCase(in.mode))
	b.WriteString("Download the PDF to view the complete analysis with all visualizations and detailed insights.\n")

	md := b.String()
	return Preview{Markdown: md, HTML: string(markdown.ToHTML([]byte(md), nil, nil))}
}

func titleCase(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var mdEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;")

func escapeMD(s string) string { return mdEscaper.Replace(s) }

func thousands(n int) string {
	s := fmt.Sprint(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
