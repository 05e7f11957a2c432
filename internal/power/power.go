// Package power reads GeoLift power simulation tables out of the R
// session and summarizes them in the terminal.
package power

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/ryanlrappa/geo-testing/internal/rbridge"
	"github.com/ryanlrappa/geo-testing/internal/rscript"
)

var (
	// ErrNoData indicates the table held no usable rows.
	ErrNoData = errors.New("power: no power data")

	// ErrBadTable indicates the table lacks effect size or power columns.
	ErrBadTable = errors.New("power: unrecognized table layout")
)

// Point is the mean simulated power at one effect size.
type Point struct {
	EffectSize float64
	Power      float64
}

// Curve is a power curve extracted from a GeoLiftPower / MultiCellPower
// result table.
type Curve struct {
	Object    string
	Locations []string
	Points    []Point
}

// Fetch pulls the named table (typically power_data or Power) from the R
// environment as CSV and aggregates it into a curve. Multiple simulations
// per effect size are averaged.
func Fetch(ctx context.Context, exec rbridge.Executor, object string) (*Curve, error) {
	if !rscript.ValidName(object) {
		return nil, fmt.Errorf("%w: %q", rscript.ErrObjectName, object)
	}

	script := fmt.Sprintf(
		".geolift_csv <- charToRaw(paste(utils::capture.output(utils::write.csv(as.data.frame(%s), row.names = FALSE)), collapse = \"\\n\"))",
		object)
	if err := exec.Execute(ctx, script); err != nil {
		return nil, err
	}
	raw, err := exec.Fetch(ctx, ".geolift_csv")
	if err != nil {
		return nil, err
	}

	curve, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	curve.Object = object
	return curve, nil
}

// Parse reads a power table in CSV form. Column matching is
// case-insensitive: effect size from "effectsize"/"effect_size", power
// from "power", location label from "location".
func Parse(data []byte) (*Curve, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, ErrNoData
	}

	effectCol, powerCol, locCol := -1, -1, -1
	for i, name := range records[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "effectsize", "effect_size":
			effectCol = i
		case "power":
			powerCol = i
		case "location":
			locCol = i
		}
	}
	if effectCol < 0 || powerCol < 0 {
		return nil, ErrBadTable
	}

	sums := make(map[float64]float64)
	counts := make(map[float64]int)
	locs := make(map[string]bool)
	for _, rec := range records[1:] {
		if effectCol >= len(rec) || powerCol >= len(rec) {
			continue
		}
		es, err1 := strconv.ParseFloat(strings.TrimSpace(rec[effectCol]), 64)
		pw, err2 := strconv.ParseFloat(strings.TrimSpace(rec[powerCol]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		sums[es] += pw
		counts[es]++
		if locCol >= 0 && locCol < len(rec) {
			if l := strings.TrimSpace(rec[locCol]); l != "" {
				locs[l] = true
			}
		}
	}
	if len(counts) == 0 {
		return nil, ErrNoData
	}

	curve := &Curve{}
	for es, sum := range sums {
		curve.Points = append(curve.Points, Point{EffectSize: es, Power: sum / float64(counts[es])})
	}
	sort.Slice(curve.Points, func(i, j int) bool {
		return curve.Points[i].EffectSize < curve.Points[j].EffectSize
	})
	for l := range locs {
		curve.Locations = append(curve.Locations, l)
	}
	sort.Strings(curve.Locations)
	return curve, nil
}

// MDE returns the smallest absolute effect size whose mean power reaches
// the threshold, or false when the curve never gets there.
func (c *Curve) MDE(threshold float64) (float64, bool) {
	best := 0.0
	found := false
	for _, p := range c.Points {
		if p.EffectSize == 0 || p.Power < threshold {
			continue
		}
		abs := p.EffectSize
		if abs < 0 {
			abs = -abs
		}
		if !found || abs < best {
			best = abs
			found = true
		}
	}
	return best, found
}

// MeanPositive returns the mean power over strictly positive effect
// sizes, or false when the curve has none.
func (c *Curve) MeanPositive() (float64, bool) {
	sum, n := 0.0, 0
	for _, p := range c.Points {
		if p.EffectSize > 0 {
			sum += p.Power
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Ascii renders the curve as an asciigraph plot.
func (c *Curve) Ascii(width, height int) string {
	if len(c.Points) == 0 {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 15
	}
	data := make([]float64, len(c.Points))
	for i, p := range c.Points {
		data[i] = p.Power
	}
	caption := fmt.Sprintf("power vs effect size [%g, %g]",
		c.Points[0].EffectSize, c.Points[len(c.Points)-1].EffectSize)
	if len(c.Locations) > 0 {
		caption += " | " + strings.Join(c.Locations, ", ")
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}
