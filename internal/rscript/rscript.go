// Package rscript builds the R fragments sent to a GeoLift session.
// Every builder validates its parameters before substitution, so only
// vetted integers and identifier-shaped object names reach the script text.
package rscript

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validation errors.
var (
	ErrEmptyCode  = errors.New("rscript: empty plot expression")
	ErrMarketID   = errors.New("rscript: market id must be a positive integer")
	ErrLookback   = errors.New("rscript: lookback window must be a positive integer")
	ErrNoMarkets  = errors.New("rscript: at least one market id required")
	ErrObjectName = errors.New("rscript: invalid R object name")
	ErrPowerRange = errors.New("rscript: invalid effect size range")
	ErrSideOfTest = errors.New("rscript: side of test must be one_sided or two_sided")
)

var identRe = regexp.MustCompile(`^[.A-Za-z][._A-Za-z0-9]*$`)

// ValidName reports whether name is a syntactically valid R object name.
func ValidName(name string) bool {
	return identRe.MatchString(name)
}

// Objects names the GeoLift data objects expected to be bound in the R
// environment from prior setup. Defaults follow the GeoLift walkthrough.
type Objects struct {
	Data       string // pre-test panel, e.g. GeoTestData_PreTest
	Selections string // GeoLiftMarketSelection result, e.g. MarketSelections
	Markets    string // multicell market object, e.g. Markets
}

func DefaultObjects() Objects {
	return Objects{
		Data:       "GeoTestData_PreTest",
		Selections: "MarketSelections",
		Markets:    "Markets",
	}
}

func (o Objects) validate() error {
	for _, name := range []string{o.Data, o.Selections, o.Markets} {
		if !ValidName(name) {
			return fmt.Errorf("%w: %q", ErrObjectName, name)
		}
	}
	return nil
}

// PowerParams parameterize a power-curve simulation.
type PowerParams struct {
	EffectFrom float64
	EffectTo   float64
	EffectStep float64
	CPIC       float64
	SideOfTest string
}

func (p PowerParams) validate() error {
	if p.EffectStep <= 0 || p.EffectFrom >= p.EffectTo {
		return ErrPowerRange
	}
	if p.SideOfTest != "one_sided" && p.SideOfTest != "two_sided" {
		return ErrSideOfTest
	}
	return nil
}

func (p PowerParams) seq() string {
	return fmt.Sprintf("seq(%g, %g, %g)", p.EffectFrom, p.EffectTo, p.EffectStep)
}

// Plot is a validated R plotting command: an optional setup fragment run
// first, then an expression that evaluates to the plot object.
type Plot struct {
	Setup string
	Expr  string
}

// GeoPlot wraps a caller-supplied plot expression verbatim.
func GeoPlot(code string) (Plot, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Plot{}, ErrEmptyCode
	}
	return Plot{Expr: code}, nil
}

// MarketPlot builds the power analysis diagnostic plot for one treatment
// group, keyed by its row ID in the market selections table.
func MarketPlot(o Objects, marketID int) (Plot, error) {
	if err := o.validate(); err != nil {
		return Plot{}, err
	}
	if marketID <= 0 {
		return Plot{}, fmt.Errorf("%w: got %d", ErrMarketID, marketID)
	}
	return Plot{
		Expr: fmt.Sprintf("plot(%s, market_ID = %d, print_summary = TRUE)", o.Selections, marketID),
	}, nil
}

// MarketDeepDive builds the power-curve deep dive for one treatment group:
// it derives the group's locations and duration from the selections table,
// runs GeoLiftPower over the lookback window and plots the resulting curve.
func MarketDeepDive(o Objects, marketID, lookback int, p PowerParams) (Plot, error) {
	if err := o.validate(); err != nil {
		return Plot{}, err
	}
	if marketID <= 0 {
		return Plot{}, fmt.Errorf("%w: got %d", ErrMarketID, marketID)
	}
	if lookback <= 0 {
		return Plot{}, fmt.Errorf("%w: got %d", ErrLookback, lookback)
	}
	if err := p.validate(); err != nil {
		return Plot{}, err
	}

	setup := fmt.Sprintf(`market_row <- %[1]s$BestMarkets %%>%% dplyr::filter(ID == %[2]d)
treatment_locations <- stringr::str_split(market_row$location, ", ")[[1]]
treatment_duration <- market_row$duration

power_data <- GeoLiftPower(
  data = %[3]s,
  locations = treatment_locations,
  effect_size = %[4]s,
  lookback_window = %[5]d,
  treatment_periods = treatment_duration,
  cpic = %[6]g,
  side_of_test = %[7]q
)`, o.Selections, marketID, o.Data, p.seq(), lookback, p.CPIC, p.SideOfTest)

	expr := `plot(power_data, show_mde = TRUE, smoothed_values = FALSE, breaks_x_axis = 5) +
  ggplot2::labs(caption = unique(power_data$location))`

	return Plot{Setup: setup, Expr: expr}, nil
}

// MulticellPlot builds the stacked lift diagnostic for several treatment
// cells at once. One combined plot references every id in the list.
func MulticellPlot(o Objects, marketIDs []int) (Plot, error) {
	if err := o.validate(); err != nil {
		return Plot{}, err
	}
	cells, err := cellList(marketIDs)
	if err != nil {
		return Plot{}, err
	}
	return Plot{
		Setup: "test_locs <- " + cells,
		Expr:  fmt.Sprintf(`plot(%s, test_markets = test_locs, type = "Lift", stacked = TRUE)`, o.Markets),
	}, nil
}

// MulticellDeepDive builds the stacked power-curve deep dive across cells.
func MulticellDeepDive(o Objects, marketIDs []int, lookback int, p PowerParams) (Plot, error) {
	if err := o.validate(); err != nil {
		return Plot{}, err
	}
	cells, err := cellList(marketIDs)
	if err != nil {
		return Plot{}, err
	}
	if lookback <= 0 {
		return Plot{}, fmt.Errorf("%w: got %d", ErrLookback, lookback)
	}
	if err := p.validate(); err != nil {
		return Plot{}, err
	}

	setup := fmt.Sprintf(`test_locs <- %s

Power <- MultiCellPower(%s,
  test_markets = test_locs,
  effect_size = %s,
  lookback_window = %d)`, cells, o.Markets, p.seq(), lookback)

	expr := `plot(Power, actual_values = TRUE, smoothed_values = FALSE, show_mde = TRUE, breaks_x_axis = 15, stacked = TRUE)`

	return Plot{Setup: setup, Expr: expr}, nil
}

// LoadWorkspace builds the fragment restoring a saved .RData image.
func LoadWorkspace(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyCode
	}
	return "load(" + quote(path) + ")", nil
}

// SourceFile builds the fragment sourcing a setup script.
func SourceFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyCode
	}
	return "source(" + quote(path) + ", echo = FALSE)", nil
}

// quote renders a Go string as an R string literal.
func quote(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

// cellList renders ids as an R named list: list(cell_1 = 3, cell_2 = 6).
func cellList(ids []int) (string, error) {
	if len(ids) == 0 {
		return "", ErrNoMarkets
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		if id <= 0 {
			return "", fmt.Errorf("%w: got %d", ErrMarketID, id)
		}
		parts[i] = fmt.Sprintf("cell_%d = %d", i+1, id)
	}
	return "list(" + strings.Join(parts, ", ") + ")", nil
}
