package screener

// Preset is a named, predefined filter
type Preset struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Filter      ScreenerFilter `json:"filter"`
}

func float(v float64) *float64 { return &v }

// Presets returns predefined screener configurations
func Presets() []Preset {
	return []Preset{
		{
			ID:          "value",
			Name:        "Value",
			Description: "Forward P/E below 15 with positive forward earnings",
			Filter: ScreenerFilter{
				ForwardPE:  float(15),
				ForwardEPS: float(0),
			},
		},
		{
			ID:          "dividend",
			Name:        "Dividend Payers",
			Description: "Dividend yield above 3%",
			Filter: ScreenerFilter{
				DividendYield: float(3),
			},
		},
		{
			ID:          "uptrend",
			Name:        "Uptrend",
			Description: "Price above both the 50-day and 200-day moving averages",
			Filter: ScreenerFilter{
				AboveMA50:  true,
				AboveMA200: true,
			},
		},
		{
			ID:          "large_cap",
			Name:        "Large Cap",
			Description: "Market cap above $100B with over 5M shares traded daily",
			Filter: ScreenerFilter{
				MarketCap: float(10),
				AvgVolume: float(5),
			},
		},
		{
			ID:          "momentum",
			Name:        "Momentum",
			Description: "Up more than 2% today and trading above the 50-day average",
			Filter: ScreenerFilter{
				PercentChange: float(2),
				AboveMA50:     true,
			},
		},
	}
}

// FindPreset looks up a preset by id
func FindPreset(id string) (Preset, bool) {
	for _, p := range Presets() {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}
