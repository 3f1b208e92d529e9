package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/artifacts"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
	"github.com/bryanwahyu/medreport/internal/domain/reports"
)

// Title printed on the first page of every report.
const Title = "Medical Data Analysis Report"

const (
	pageWidth = 210.0
	marginMM  = 15.0
	bodyWidth = pageWidth - 2*marginMM
	lineH     = 6.0
)

type document struct {
	filename  string
	format    reports.Type
	generated time.Time
	table     *dataset.Table
	result    analysis.Success
	images    []artifacts.Artifact

	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (d *document) render(w io.Writer, sections []reports.Section) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetTitle(Title, true)
	pdf.SetCreator("medreport", true)
	d.pdf = pdf
	d.tr = pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	d.cover()
	for _, s := range sections {
		switch s {
		case reports.SectionExecutiveSummary:
			d.executiveSummary()
		case reports.SectionDataOverview:
			d.dataOverview()
		case reports.SectionKeyInsights:
			d.keyInsights()
		case reports.SectionVisualizations:
			d.visualizations()
		case reports.SectionStatisticalAnalysis:
			d.statistics()
		case reports.SectionPredictions:
			d.predictions()
		case reports.SectionRecommendations:
			d.recommendations()
		}
	}
	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func (d *document) cover() {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(31, 56, 100)
	pdf.CellFormat(0, 12, Title, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.CellFormat(0, lineH, d.tr("File: "+d.filename), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, lineH, fmt.Sprintf("Report type: %s    Generated: %s",
		typeLabel(d.format), d.generated.Format("2006-01-02 15:04:05")), "", 1, "C", false, 0, "")
	pdf.Ln(6)
}

func (d *document) heading(s reports.Section) {
	pdf := d.pdf
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(31, 56, 100)
	pdf.SetFillColor(232, 238, 247)
	pdf.CellFormat(0, 9, string(s), "", 1, "L", true, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
}

func (d *document) para(s string) {
	d.pdf.MultiCell(0, lineH, d.tr(s), "", "L", false)
}

func (d *document) bullets(items []string) {
	for _, it := range items {
		d.pdf.SetX(marginMM + 3)
		d.pdf.MultiCell(bodyWidth-3, lineH, d.tr("- "+it), "", "L", false)
	}
}

func (d *document) subheading(s string) {
	d.pdf.SetFont("Helvetica", "B", 11)
	d.pdf.CellFormat(0, 7, d.tr(s), "", 1, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
}

func (d *document) grid(header []string, widths []float64, rows [][]string) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(220, 220, 220)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, d.tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		for i, c := range row {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, d.tr(c), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.Ln(2)
}

func (d *document) executiveSummary() {
	d.heading(reports.SectionExecutiveSummary)
	st := d.table.Stats()
	d.para(fmt.Sprintf("This report analyzes %s, containing %d records across %d features. The analysis was run in %s mode.",
		d.filename, st.Records, st.Features, d.result.Mode))
	if top := firstN(d.result.Insights, 3); len(top) > 0 {
		d.subheading("Highlights")
		d.bullets(top)
	}
	if d.result.Accuracy != nil {
		d.para(fmt.Sprintf("The prediction model reached %.1f%% accuracy on held-out records.", *d.result.Accuracy*100))
	}
}

func (d *document) dataOverview() {
	d.heading(reports.SectionDataOverview)
	st := d.table.Stats()
	d.grid([]string{"Metric", "Value"}, []float64{90, 90}, [][]string{
		{"Records", fmt.Sprint(st.Records)},
		{"Features", fmt.Sprint(st.Features)},
		{"Numeric columns", fmt.Sprint(st.NumericColumns)},
		{"Missing values", fmt.Sprint(st.MissingValues)},
	})
	rows := make([][]string, 0, len(d.table.Columns))
	for i := range d.table.Columns {
		c := &d.table.Columns[i]
		rows = append(rows, []string{clip(c.Name, 40), string(c.Kind), fmt.Sprint(c.MissingCount())})
	}
	d.grid([]string{"Column", "Type", "Missing"}, []float64{90, 45, 45}, rows)
}

func (d *document) keyInsights() {
	d.heading(reports.SectionKeyInsights)
	if len(d.result.Insights) > 0 {
		d.bullets(d.result.Insights)
	} else {
		d.para("No insights were produced.")
	}
	if len(d.result.RiskFactors) > 0 {
		d.subheading("Risk Factors")
		d.bullets(d.result.RiskFactors)
	}
}

func (d *document) visualizations() {
	d.heading(reports.SectionVisualizations)
	if len(d.images) == 0 {
		d.para("No charts could be drawn for this dataset.")
		return
	}
	pdf := d.pdf
	for _, img := range d.images {
		info := pdf.RegisterImageOptionsReader(img.Name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(img.Data))
		if info == nil {
			continue
		}
		w := bodyWidth
		h := w * info.Height() / info.Width()
		if h > 150 {
			h = 150
			w = h * info.Width() / info.Height()
		}
		_, pageH := pdf.GetPageSize()
		if pdf.GetY()+h > pageH-25 {
			pdf.AddPage()
		}
		x := marginMM + (bodyWidth-w)/2
		pdf.ImageOptions(img.Name, x, pdf.GetY(), w, h, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		pdf.SetY(pdf.GetY() + h + 4)
	}
}

func (d *document) statistics() {
	d.heading(reports.SectionStatisticalAnalysis)
	sums := dataset.Describe(d.table)
	if len(sums) == 0 {
		d.para("The dataset has no numeric columns.")
		return
	}
	rows := make([][]string, 0, len(sums))
	for _, s := range sums {
		rows = append(rows, []string{clip(s.Column, 22), fmt.Sprint(s.Count), num(s.Mean), num(s.Std), num(s.Min), num(s.Median), num(s.Max)})
	}
	d.grid([]string{"Column", "Count", "Mean", "Std", "Min", "Median", "Max"},
		[]float64{45, 20, 23, 23, 23, 23, 23}, rows)

	if pairs := dataset.Correlation(d.table).TopPairs(5); len(pairs) > 0 {
		d.subheading("Strongest correlations")
		items := make([]string, len(pairs))
		for i, p := range pairs {
			items[i] = fmt.Sprintf("%s and %s: r = %.2f", p.A, p.B, p.R)
		}
		d.bullets(items)
	}
}

func (d *document) predictions() {
	d.heading(reports.SectionPredictions)
	p := d.result.Predictions
	if p == nil {
		d.para("No predictions were produced for this analysis.")
		return
	}
	d.grid([]string{"Property", "Value"}, []float64{60, 120}, [][]string{
		{"Task", p.Task},
		{"Target", clip(p.Target, 60)},
		{"Model", p.Model},
		{"Features", clip(strings.Join(p.Features, ", "), 60)},
		{"Train / test rows", fmt.Sprintf("%d / %d", p.TrainSize, p.TestSize)},
		{"Accuracy", pct(d.result.Accuracy)},
	})
	cm := d.result.ConfusionMatrix
	if len(cm) == 0 || len(cm) != len(p.Classes) || len(cm) > 8 {
		return
	}
	d.subheading("Confusion matrix (rows: actual, columns: predicted)")
	header := append([]string{""}, p.Classes...)
	widths := make([]float64, len(header))
	for i := range widths {
		widths[i] = bodyWidth / float64(len(header))
	}
	rows := make([][]string, len(cm))
	for i, r := range cm {
		row := []string{clip(p.Classes[i], 12)}
		for _, v := range r {
			row = append(row, fmt.Sprint(v))
		}
		rows[i] = row
	}
	d.grid(header, widths, rows)
}

func (d *document) recommendations() {
	d.heading(reports.SectionRecommendations)
	var recs []string
	for _, r := range d.result.RiskFactors {
		recs = append(recs, "Review with clinical staff: "+r)
	}
	if st := d.table.Stats(); st.MissingValues > 0 {
		recs = append(recs, fmt.Sprintf("Address the %d missing values through follow-up collection or documented imputation before drawing conclusions.", st.MissingValues))
	}
	if d.result.Accuracy != nil && *d.result.Accuracy < 0.7 {
		recs = append(recs, "Model accuracy is modest; treat predictions as exploratory and validate on an independent cohort.")
	}
	recs = append(recs, "Re-run this analysis when new records are added to track changes over time.")
	d.bullets(recs)
}

func typeLabel(t reports.Type) string {
	s := strings.ReplaceAll(string(t), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}
