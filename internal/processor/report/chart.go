package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var ErrInvalidReport = errors.New("report: invalid csv report")

var (
	colorPrimary = drawing.ColorFromHex("81A1C1")
	colorBg      = drawing.ColorFromHex("2E3440")
	colorGrid    = drawing.ColorFromHex("3B4252")
	colorText    = drawing.ColorFromHex("D8DEE9")
)

// Dataset is the first label column and first numeric column of a CSV report.
type Dataset struct {
	Title     string
	Labels    []string
	Values    []float64
	Truncated bool
}

// ParseCSV reads a report with a header row. The first column labels each
// row; the first column after it that holds a number in the first data row
// supplies the values.
func ParseCSV(r io.Reader, maxRows int) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidReport)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: need a label column and a value column", ErrInvalidReport)
	}

	ds := &Dataset{}
	col := -1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
		}

		if col < 0 {
			col = numericColumn(record)
			if col < 0 {
				return nil, fmt.Errorf("%w: no numeric column", ErrInvalidReport)
			}
			if col < len(header) {
				ds.Title = strings.TrimSpace(header[col])
			}
		}

		if maxRows > 0 && len(ds.Values) >= maxRows {
			ds.Truncated = true
			break
		}
		if col >= len(record) {
			return nil, fmt.Errorf("%w: row %d has no column %d", ErrInvalidReport, len(ds.Values)+2, col+1)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %q is not a number", ErrInvalidReport, len(ds.Values)+2, record[col])
		}
		ds.Labels = append(ds.Labels, strings.TrimSpace(record[0]))
		ds.Values = append(ds.Values, v)
	}

	if len(ds.Values) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrInvalidReport)
	}
	return ds, nil
}

func numericColumn(record []string) int {
	for i := 1; i < len(record); i++ {
		if _, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64); err == nil {
			return i
		}
	}
	return -1
}

// valueRange always spans zero and is never empty.
func valueRange(values []float64) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi * 1.1}
}

// RenderChart draws the dataset as a PNG bar chart.
func RenderChart(ds *Dataset, width, height int) ([]byte, error) {
	bars := make([]chart.Value, len(ds.Values))
	for i, v := range ds.Values {
		bars[i] = chart.Value{
			Label: ds.Labels[i],
			Value: v,
			Style: chart.Style{
				FillColor:   colorPrimary,
				StrokeColor: colorPrimary,
			},
		}
	}

	barWidth := (width - 100) / (2 * len(bars))
	if barWidth < 4 {
		barWidth = 4
	}

	graph := chart.BarChart{
		Title:  ds.Title,
		Width:  width,
		Height: height,
		TitleStyle: chart.Style{
			FontColor: colorText,
			FontSize:  12,
		},
		Background: chart.Style{
			FillColor: colorBg,
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Canvas: chart.Style{
			FillColor: colorBg,
		},
		XAxis: chart.Style{
			StrokeColor: colorGrid,
			FontColor:   colorText,
			FontSize:    9,
		},
		YAxis: chart.YAxis{
			Style: chart.Style{
				StrokeColor: colorGrid,
				FontColor:   colorText,
				FontSize:    10,
			},
			Range: valueRange(ds.Values),
		},
		BarWidth:   barWidth,
		BarSpacing: barWidth,
		Bars:       bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
