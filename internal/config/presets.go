package config

// Presets are named power-analysis configurations, keyed by variant
// ("market" for single-cell deep dives, "multicell" for MultiCellPower).
var Presets = map[string]map[string]*PowerConfig{
	"market": {
		"standard": {
			EffectFrom: -0.25, EffectTo: 0.25, EffectStep: 0.01,
			CPIC: DefaultCPIC, SideOfTest: "two_sided", Lookback: 7,
		},
		"fine": {
			EffectFrom: -0.25, EffectTo: 0.25, EffectStep: 0.005,
			CPIC: DefaultCPIC, SideOfTest: "two_sided", Lookback: 14,
		},
		"positive": {
			EffectFrom: 0.0, EffectTo: 0.25, EffectStep: 0.01,
			CPIC: DefaultCPIC, SideOfTest: "one_sided", Lookback: 7,
		},
	},
	"multicell": {
		"standard": {
			EffectFrom: -0.5, EffectTo: 0.5, EffectStep: 0.05,
			CPIC: DefaultCPIC, SideOfTest: "two_sided", Lookback: 7,
		},
		"fine": {
			EffectFrom: -0.5, EffectTo: 0.5, EffectStep: 0.025,
			CPIC: DefaultCPIC, SideOfTest: "two_sided", Lookback: 14,
		},
	},
}

func GetPreset(variant, name string) *PowerConfig {
	group, ok := Presets[variant]
	if !ok {
		return nil
	}
	return group[name]
}

func ListPresets(variant string) []string {
	group, ok := Presets[variant]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(group))
	for name := range group {
		names = append(names, name)
	}
	return names
}
