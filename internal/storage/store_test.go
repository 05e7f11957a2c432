package storage

import (
	"strings"
	"testing"
)

func TestSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	id, err := st.Save(PlotMetadata{
		Kind:      "deep-dive",
		MarketIDs: []int{3},
		Lookback:  7,
		Width:     800,
		Height:    600,
	}, png)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(id, "deep-dive_") {
		t.Errorf("unexpected id: %s", id)
	}

	meta, err := st.Load(id)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Kind != "deep-dive" || meta.Lookback != 7 {
		t.Errorf("metadata round trip failed: %+v", meta)
	}
	if len(meta.MarketIDs) != 1 || meta.MarketIDs[0] != 3 {
		t.Errorf("market ids lost: %v", meta.MarketIDs)
	}

	data, err := st.LoadPNG(id)
	if err != nil {
		t.Fatalf("load png failed: %v", err)
	}
	if string(data) != string(png) {
		t.Error("png payload changed on disk")
	}
}

func TestList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	plots, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(plots) != 0 {
		t.Errorf("expected empty store, got %d", len(plots))
	}

	if _, err := st.Save(PlotMetadata{Kind: "market", MarketIDs: []int{1}}, []byte{1}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	plots, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(plots) != 1 {
		t.Fatalf("expected 1 plot, got %d", len(plots))
	}
	if plots[0].Kind != "market" {
		t.Errorf("unexpected kind: %s", plots[0].Kind)
	}
}

func TestList_MissingDir(t *testing.T) {
	st := New(t.TempDir() + "/does-not-exist")
	plots, err := st.List()
	if err != nil {
		t.Fatalf("list on missing dir should not fail: %v", err)
	}
	if len(plots) != 0 {
		t.Errorf("expected no plots, got %d", len(plots))
	}
}

func TestLoad_Missing(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope_123"); err == nil {
		t.Error("expected error for missing plot")
	}
}
