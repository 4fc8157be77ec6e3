package currency

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

type fileCurrency struct {
	Name          string   `json:"name"`
	Singular      string   `json:"singular"`
	Plural        string   `json:"plural"`
	DecimalPlaces uint8    `json:"decimal_places"`
	Symbol        string   `json:"symbol"`
	Worlds        []string `json:"worlds"`
	Default       bool     `json:"default"`
}

type fileConfig struct {
	Currencies []fileCurrency `json:"currencies"`
}

// Builtin is the currency registered when no configuration file is provided.
var Builtin = Currency{
	Name:          "dollar",
	Singular:      "Dollar",
	Plural:        "Dollars",
	DecimalPlaces: 2,
	Symbol:        "$",
	Default:       true,
}

// Load builds a registry from a JSON document of the form
// {"currencies": [{"name": "gold", "singular": "Gold", ...}]}.
func Load(r io.Reader) (*Registry, error) {
	var cfg fileConfig
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode currency config: %w", err)
	}
	if len(cfg.Currencies) == 0 {
		return nil, fmt.Errorf("currency config declares no currencies")
	}

	reg := NewRegistry()
	for _, fc := range cfg.Currencies {
		err := reg.Register(Currency{
			Name:          fc.Name,
			Singular:      fc.Singular,
			Plural:        fc.Plural,
			DecimalPlaces: fc.DecimalPlaces,
			Symbol:        fc.Symbol,
			Worlds:        fc.Worlds,
			Default:       fc.Default,
		})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", fc.Name, err)
		}
	}
	return reg, nil
}

// LoadFile reads the currency configuration at path. An empty path yields a
// registry holding only Builtin.
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		reg := NewRegistry()
		if err := reg.Register(Builtin); err != nil {
			return nil, err
		}
		return reg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open currency config: %w", err)
	}
	defer f.Close()
	return Load(f)
}
