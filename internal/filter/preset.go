package filter

// Preset is a named, complete filter configuration.
type Preset struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
}

var presets = []Preset{
	{
		ID:   "bright-vibrant",
		Name: "Bright & Vibrant",
		Entries: []Entry{
			{Kind: Brightness, Value: 0.2},
			{Kind: Contrast, Value: 0.3},
			{Kind: Saturation, Value: 0.1},
		},
	},
	{
		ID:   "dramatic",
		Name: "Dramatic",
		Entries: []Entry{
			{Kind: Brightness, Value: -0.2},
			{Kind: Contrast, Value: 0.4},
			{Kind: Saturation, Value: -0.3},
		},
	},
	{
		ID:   "soft-dreamy",
		Name: "Soft & Dreamy",
		Entries: []Entry{
			{Kind: Brightness, Value: 0.1},
			{Kind: Contrast, Value: -0.2},
			{Kind: Saturation, Value: -0.1},
			{Kind: Blur, Value: 0.05},
		},
	},
	{
		ID:   "vintage",
		Name: "Vintage",
		Entries: []Entry{
			{Kind: Brightness, Value: -0.3},
			{Kind: Contrast, Value: 0.5},
			{Kind: Saturation, Value: -0.5},
			{Kind: Sepia},
		},
	},
}

// Presets returns the built-in presets.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// LookupPreset finds a built-in preset by ID.
func LookupPreset(id string) (Preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}
