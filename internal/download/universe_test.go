package download

import (
	"os"
	"path/filepath"
	"testing"

	"tradelab/types"
)

func TestLoadUniverse(t *testing.T) {
	path := writeUniverse(t, `
instruments:
  - symbol: ORCL
    name: Oracle Corporation
  - symbol: BTCUSDT
    name: Bitcoin Tether
    type: CRYPTO
`)

	instruments, err := LoadUniverse(path)
	if err != nil {
		t.Fatalf("LoadUniverse: %v", err)
	}
	if len(instruments) != 2 {
		t.Fatalf("got %d instruments, want 2", len(instruments))
	}
	if instruments[0].Symbol != "ORCL" || instruments[0].Name != "Oracle Corporation" {
		t.Fatalf("first instrument wrong: %+v", instruments[0])
	}
	if instruments[0].InstrumentType() != types.InstrumentTypeStock {
		t.Fatalf("untyped entry: got %s, want %s", instruments[0].InstrumentType(), types.InstrumentTypeStock)
	}
	if instruments[1].InstrumentType() != types.InstrumentTypeCrypto {
		t.Fatalf("crypto entry: got %s, want %s", instruments[1].InstrumentType(), types.InstrumentTypeCrypto)
	}
}

func TestLoadUniverseRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "no instruments", content: "instruments: []\n"},
		{name: "entry without symbol", content: "instruments:\n  - name: Oracle Corporation\n"},
		{name: "malformed yaml", content: "instruments: [\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadUniverse(writeUniverse(t, tc.content)); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestLoadUniverseMissingFile(t *testing.T) {
	if _, err := LoadUniverse(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestInstrumentTypeDefaults(t *testing.T) {
	tests := []struct {
		raw  string
		want types.InstrumentType
	}{
		{raw: "", want: types.InstrumentTypeStock},
		{raw: "STOCK", want: types.InstrumentTypeStock},
		{raw: "CRYPTO", want: types.InstrumentTypeCrypto},
		{raw: "etf", want: types.InstrumentTypeEtf},
		{raw: "bond", want: types.InstrumentTypeStock},
	}

	for _, tc := range tests {
		inst := Instrument{Symbol: "X", Type: tc.raw}
		if got := inst.InstrumentType(); got != tc.want {
			t.Fatalf("type %q: got %s, want %s", tc.raw, got, tc.want)
		}
	}
}

// Helper functions

func writeUniverse(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write universe: %v", err)
	}
	return path
}
