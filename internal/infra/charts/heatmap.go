package charts

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/bryanwahyu/medreport/internal/domain/artifacts"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

const (
	cellSize   = 64
	margin     = 16
	titleSpace = 40
	charWidth  = 7
	labelChars = 9
)

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{20, 20, 20, 255}
	nanBG = color.RGBA{200, 200, 200, 255}
)

// CorrelationHeatmap renders a correlation matrix with a diverging blue-red scale over [-1, 1].
func CorrelationHeatmap(m dataset.CorrelationMatrix) (artifacts.Artifact, error) {
	if len(m.Columns) < 2 {
		return artifacts.Artifact{}, fmt.Errorf("%w: need at least two numeric columns", ErrNoData)
	}
	data, err := heatmap("Correlation Matrix", m.Columns, m.Columns, func(i, j int) (string, color.RGBA) {
		v := m.Values[i][j]
		if math.IsNaN(v) {
			return "n/a", nanBG
		}
		return fmt.Sprintf("%.2f", v), coolwarm(v)
	})
	if err != nil {
		return artifacts.Artifact{}, err
	}
	return artifacts.Artifact{Name: "correlation_heatmap.png", ContentType: contentTypePNG, Data: data}, nil
}

// ConfusionHeatmap renders a confusion matrix; rows are actual classes, columns predicted.
func ConfusionHeatmap(classes []string, cm [][]int) (artifacts.Artifact, error) {
	if len(cm) == 0 {
		return artifacts.Artifact{}, fmt.Errorf("%w: empty confusion matrix", ErrNoData)
	}
	labels := classes
	if len(labels) != len(cm) {
		labels = make([]string, len(cm))
		for i := range labels {
			labels[i] = fmt.Sprint(i)
		}
	}
	maxV := 0
	for _, row := range cm {
		for _, v := range row {
			if v > maxV {
				maxV = v
			}
		}
	}
	data, err := heatmap("Confusion Matrix (actual x predicted)", labels, labels, func(i, j int) (string, color.RGBA) {
		frac := 0.0
		if maxV > 0 {
			frac = float64(cm[i][j]) / float64(maxV)
		}
		return fmt.Sprint(cm[i][j]), blues(frac)
	})
	if err != nil {
		return artifacts.Artifact{}, err
	}
	return artifacts.Artifact{Name: "confusion_matrix.png", ContentType: contentTypePNG, Data: data}, nil
}

func heatmap(title string, rows, cols []string, cell func(i, j int) (string, color.RGBA)) ([]byte, error) {
	left := margin + labelChars*charWidth + 8
	top := titleSpace + 20
	w := left + len(cols)*cellSize + margin
	h := top + len(rows)*cellSize + margin
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: white}, image.Point{}, draw.Src)

	drawText(img, title, margin, 24, black)
	for j, c := range cols {
		label := truncate(c, labelChars)
		x := left + j*cellSize + (cellSize-len(label)*charWidth)/2
		drawText(img, label, x, top-6, black)
	}
	for i, r := range rows {
		y := top + i*cellSize
		drawText(img, truncate(r, labelChars), margin, y+cellSize/2+4, black)
		for j := range cols {
			text, bg := cell(i, j)
			x := left + j*cellSize
			rect := image.Rect(x+1, y+1, x+cellSize-1, y+cellSize-1)
			draw.Draw(img, rect, &image.Uniform{C: bg}, image.Point{}, draw.Src)
			drawText(img, text, x+(cellSize-len(text)*charWidth)/2, y+cellSize/2+4, textOn(bg))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode %s: %w", title, err)
	}
	return buf.Bytes(), nil
}

func drawText(img *image.RGBA, s string, x, y int, col color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}

// coolwarm maps [-1,1] onto blue-white-red.
func coolwarm(v float64) color.RGBA {
	v = math.Max(-1, math.Min(1, v))
	cold := color.RGBA{59, 76, 192, 255}
	mid := color.RGBA{221, 221, 221, 255}
	warm := color.RGBA{180, 4, 38, 255}
	if v < 0 {
		return lerp(mid, cold, -v)
	}
	return lerp(mid, warm, v)
}

func blues(f float64) color.RGBA {
	return lerp(color.RGBA{247, 251, 255, 255}, color.RGBA{8, 48, 107, 255}, math.Max(0, math.Min(1, f)))
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + t*(float64(y)-float64(x)))) }
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

func textOn(bg color.RGBA) color.RGBA {
	lum := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if lum < 128 {
		return white
	}
	return black
}
