package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Store keeps captured plots on disk, one directory per capture with the
// PNG payload and a metadata sidecar.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type PlotMetadata struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	MarketIDs []int     `json:"market_ids,omitempty"`
	Lookback  int       `json:"lookback,omitempty"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Expr      string    `json:"expr,omitempty"`
}

// Save writes the plot and its metadata, returning the generated id.
func (s *Store) Save(meta PlotMetadata, png []byte) (string, error) {
	id := fmt.Sprintf("%s_%d", meta.Kind, time.Now().Unix())
	dir := filepath.Join(s.baseDir, id)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	meta.ID = id
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	f, err := os.Create(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath.Join(dir, "plot.png"), png, 0644); err != nil {
		return "", err
	}

	return id, nil
}

func (s *Store) List() ([]PlotMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []PlotMetadata{}, nil
		}
		return nil, err
	}

	plots := make([]PlotMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}

		var meta PlotMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		plots = append(plots, meta)
	}

	sort.Slice(plots, func(i, j int) bool {
		return plots[i].Timestamp.Before(plots[j].Timestamp)
	})
	return plots, nil
}

func (s *Store) Load(id string) (*PlotMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta PlotMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadPNG(id string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.baseDir, id, "plot.png"))
}
