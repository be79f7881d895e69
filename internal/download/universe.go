package download

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tradelab/types"
)

// Instrument is one downloadable listing, as returned by the API or read
// from a universe file.
type Instrument struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
	Type   string `json:"type" yaml:"type,omitempty"`
}

// InstrumentType maps the listing type onto the repository's instrument
// types. Unknown or empty types are treated as stocks.
func (i Instrument) InstrumentType() types.InstrumentType {
	switch i.Type {
	case "CRYPTO", "crypto":
		return types.InstrumentTypeCrypto
	case "ETF", "etf":
		return types.InstrumentTypeEtf
	default:
		return types.InstrumentTypeStock
	}
}

type universeFile struct {
	Instruments []Instrument `yaml:"instruments"`
}

// LoadUniverse reads a local YAML file naming the instruments to
// download, as an alternative to the remote listing.
func LoadUniverse(path string) ([]Instrument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}

	var file universeFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse universe file: %w", err)
	}
	if len(file.Instruments) == 0 {
		return nil, fmt.Errorf("universe file %s lists no instruments", path)
	}
	for i, inst := range file.Instruments {
		if inst.Symbol == "" {
			return nil, fmt.Errorf("universe entry %d has no symbol", i)
		}
	}
	return file.Instruments, nil
}
