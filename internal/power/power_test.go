package power

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ryanlrappa/geo-testing/internal/rscript"
)

const sampleCSV = `"location","duration","EffectSize","power"
"chicago, portland",15,-0.1,0.9
"chicago, portland",15,-0.05,0.6
"chicago, portland",15,0,0.05
"chicago, portland",15,0.05,0.55
"chicago, portland",15,0.05,0.65
"chicago, portland",15,0.1,0.85
"chicago, portland",15,0.15,0.95
`

type fakeExecutor struct {
	scripts []string
	payload []byte
	execErr error
}

func (f *fakeExecutor) Execute(_ context.Context, script string) error {
	f.scripts = append(f.scripts, script)
	return f.execErr
}

func (f *fakeExecutor) Fetch(_ context.Context, expr string) ([]byte, error) {
	return f.payload, nil
}

func TestParse(t *testing.T) {
	curve, err := Parse([]byte(sampleCSV))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if len(curve.Points) != 6 {
		t.Fatalf("expected 6 effect sizes, got %d", len(curve.Points))
	}
	if curve.Points[0].EffectSize != -0.1 {
		t.Errorf("points not sorted: first is %v", curve.Points[0])
	}

	// Two simulations at 0.05 should average to 0.6.
	for _, p := range curve.Points {
		if p.EffectSize == 0.05 && math.Abs(p.Power-0.6) > 1e-9 {
			t.Errorf("expected mean power 0.6 at 0.05, got %f", p.Power)
		}
	}

	if len(curve.Locations) != 1 || curve.Locations[0] != "chicago, portland" {
		t.Errorf("unexpected locations: %v", curve.Locations)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse([]byte("")); !errors.Is(err, ErrNoData) {
		t.Errorf("empty input: expected ErrNoData, got %v", err)
	}
	if _, err := Parse([]byte("a,b\n1,2\n")); !errors.Is(err, ErrBadTable) {
		t.Errorf("missing columns: expected ErrBadTable, got %v", err)
	}
	if _, err := Parse([]byte("EffectSize,power\nx,y\n")); !errors.Is(err, ErrNoData) {
		t.Errorf("unparseable rows: expected ErrNoData, got %v", err)
	}
}

func TestMDE(t *testing.T) {
	curve, err := Parse([]byte(sampleCSV))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	mde, ok := curve.MDE(0.8)
	if !ok {
		t.Fatal("expected an MDE")
	}
	if math.Abs(mde-0.1) > 1e-9 {
		t.Errorf("expected MDE 0.1, got %f", mde)
	}

	if _, ok := curve.MDE(0.99); ok {
		t.Error("expected no MDE at threshold 0.99")
	}
}

func TestMeanPositive(t *testing.T) {
	curve, err := Parse([]byte(sampleCSV))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// Positive effect sizes: 0.05 (averaged to 0.6), 0.1, 0.15.
	mean, ok := curve.MeanPositive()
	if !ok {
		t.Fatal("expected a mean over positive effect sizes")
	}
	want := (0.6 + 0.85 + 0.95) / 3
	if math.Abs(mean-want) > 1e-9 {
		t.Errorf("expected mean %f, got %f", want, mean)
	}

	negOnly := &Curve{Points: []Point{{EffectSize: -0.1, Power: 0.9}}}
	if _, ok := negOnly.MeanPositive(); ok {
		t.Error("expected no mean without positive effect sizes")
	}
}

func TestAscii(t *testing.T) {
	curve, err := Parse([]byte(sampleCSV))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	out := curve.Ascii(60, 10)
	if out == "" {
		t.Fatal("empty ascii plot")
	}
	if !strings.Contains(out, "power vs effect size") {
		t.Error("caption missing")
	}
}

func TestFetch(t *testing.T) {
	exec := &fakeExecutor{payload: []byte(sampleCSV)}
	curve, err := Fetch(context.Background(), exec, "power_data")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if curve.Object != "power_data" {
		t.Errorf("object not recorded: %q", curve.Object)
	}
	if len(exec.scripts) != 1 || !strings.Contains(exec.scripts[0], "write.csv(as.data.frame(power_data)") {
		t.Errorf("unexpected script: %v", exec.scripts)
	}
}

func TestFetch_InvalidObjectName(t *testing.T) {
	exec := &fakeExecutor{}
	_, err := Fetch(context.Background(), exec, "power_data; rm(list=ls())")
	if !errors.Is(err, rscript.ErrObjectName) {
		t.Fatalf("expected ErrObjectName, got %v", err)
	}
	if len(exec.scripts) != 0 {
		t.Error("no script should run for an invalid name")
	}
}

func TestFetch_ExecuteError(t *testing.T) {
	wantErr := errors.New("object 'power_data' not found")
	exec := &fakeExecutor{execErr: wantErr}
	if _, err := Fetch(context.Background(), exec, "power_data"); !errors.Is(err, wantErr) {
		t.Errorf("expected propagation, got %v", err)
	}
}
