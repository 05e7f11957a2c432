package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWidth      = 800
	DefaultHeight     = 600
	DefaultPointSize  = 16
	DefaultBackground = "transparent"
	DefaultCPIC       = 7.5
	DefaultLookback   = 7
	DefaultTermWidth  = 100
)

type Config struct {
	R       RConfig       `yaml:"r"`
	Objects ObjectsConfig `yaml:"objects"`
	Plot    PlotConfig    `yaml:"plot"`
	Power   PowerConfig   `yaml:"power"`
	// Multicell power runs a coarser effect-size grid, matching the
	// MultiCellPower walkthrough defaults.
	MulticellPower PowerConfig   `yaml:"multicell_power"`
	Display        DisplayConfig `yaml:"display"`
	DataDir        string        `yaml:"data_dir"`
}

type RConfig struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
	Dir    string   `yaml:"dir"`
	// Workspace is an .RData file loaded when the session opens;
	// Setup is an R script sourced right after. Between them the caller
	// provides the GeoLift datasets the plotting calls assume.
	Workspace string `yaml:"workspace"`
	Setup     string `yaml:"setup"`
}

type ObjectsConfig struct {
	Data       string `yaml:"data"`
	Selections string `yaml:"selections"`
	Markets    string `yaml:"markets"`
}

type PlotConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	PointSize  int    `yaml:"point_size"`
	Background string `yaml:"background"`
}

type PowerConfig struct {
	EffectFrom float64 `yaml:"effect_from"`
	EffectTo   float64 `yaml:"effect_to"`
	EffectStep float64 `yaml:"effect_step"`
	CPIC       float64 `yaml:"cpic"`
	SideOfTest string  `yaml:"side_of_test"`
	Lookback   int     `yaml:"lookback"`
}

type DisplayConfig struct {
	Inline    bool   `yaml:"inline"`
	Mono      bool   `yaml:"mono"`
	Viewer    string `yaml:"viewer"`
	TermWidth int    `yaml:"term_width"`
}

func DefaultConfig() *Config {
	return &Config{
		R: RConfig{Binary: "R"},
		Objects: ObjectsConfig{
			Data:       "GeoTestData_PreTest",
			Selections: "MarketSelections",
			Markets:    "Markets",
		},
		Plot: PlotConfig{
			Width:      DefaultWidth,
			Height:     DefaultHeight,
			PointSize:  DefaultPointSize,
			Background: DefaultBackground,
		},
		Power: PowerConfig{
			EffectFrom: -0.25,
			EffectTo:   0.25,
			EffectStep: 0.01,
			CPIC:       DefaultCPIC,
			SideOfTest: "two_sided",
			Lookback:   DefaultLookback,
		},
		MulticellPower: PowerConfig{
			EffectFrom: -0.5,
			EffectTo:   0.5,
			EffectStep: 0.05,
			CPIC:       DefaultCPIC,
			SideOfTest: "two_sided",
			Lookback:   DefaultLookback,
		},
		Display: DisplayConfig{
			Inline:    true,
			TermWidth: DefaultTermWidth,
		},
		DataDir: ".geolift",
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
