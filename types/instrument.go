package types

import (
	"time"
)

type InstrumentType string

const (
	InstrumentTypeStock  InstrumentType = "STOCK"
	InstrumentTypeCrypto InstrumentType = "CRYPTO"
	InstrumentTypeEtf    InstrumentType = "ETF"
)

type Instrument struct {
	ID         int            `json:"id"`
	Symbol     string         `json:"symbol"`
	Name       string         `json:"name"`
	Type       InstrumentType `json:"type"`
	CreatedAt  time.Time      `json:"createdAt"`
	ModifiedAt time.Time      `json:"modifiedAt"`
}
