package enrichment

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed weights.yaml
var defaultWeightsYAML []byte

// Weights assigns the confidence contribution of a field written by a vendor.
type Weights struct {
	Default float64                  `yaml:"default"`
	Vendors map[string]VendorWeights `yaml:"vendors"`
}

// VendorWeights holds one vendor's per-field weights.
type VendorWeights struct {
	Default float64
	Fields  map[string]float64
}

// UnmarshalYAML splits the optional "default" key from the field weights.
func (v *VendorWeights) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]float64
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v.Fields = make(map[string]float64, len(raw))
	for k, w := range raw {
		if k == "default" {
			v.Default = w
			continue
		}
		v.Fields[k] = w
	}
	return nil
}

// DefaultWeights returns the built-in weight table.
func DefaultWeights() Weights {
	w, err := ParseWeights(defaultWeightsYAML)
	if err != nil {
		panic(err) // embedded file is part of the build
	}
	return w
}

// LoadWeights reads a weight file. An empty path returns DefaultWeights.
func LoadWeights(path string) (Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "enrichment: read weights %s", path)
	}
	return ParseWeights(data)
}

// ParseWeights decodes a weight table and checks every weight is in [0,1].
func ParseWeights(data []byte) (Weights, error) {
	var w Weights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, eris.Wrap(err, "enrichment: parse weights")
	}
	if w.Default <= 0 {
		w.Default = 0.5
	}
	if !inUnit(w.Default) {
		return Weights{}, eris.Errorf("enrichment: default weight %.2f out of range", w.Default)
	}
	normalized := make(map[string]VendorWeights, len(w.Vendors))
	for name, vw := range w.Vendors {
		if !inUnit(vw.Default) {
			return Weights{}, eris.Errorf("enrichment: %s default weight %.2f out of range", name, vw.Default)
		}
		for field, fw := range vw.Fields {
			if !inUnit(fw) {
				return Weights{}, eris.Errorf("enrichment: %s.%s weight %.2f out of range", name, field, fw)
			}
		}
		normalized[strings.ToLower(name)] = vw
	}
	w.Vendors = normalized
	return w, nil
}

// For returns the weight of field when written by vendor.
func (w Weights) For(vendor, field string) float64 {
	vw, ok := w.Vendors[strings.ToLower(vendor)]
	if !ok {
		return w.Default
	}
	if fw, ok := vw.Fields[field]; ok {
		return fw
	}
	if vw.Default > 0 {
		return vw.Default
	}
	return w.Default
}

func inUnit(f float64) bool {
	return f >= 0 && f <= 1
}
