package export

import (
	"archive/zip"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCSVAndZip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bt")
	ts := time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC)
	trades := filepath.Join(dir, "trades.csv")
	equity := filepath.Join(dir, "equity.csv")

	err := WriteTradesCSV(trades, []TradeCSV{{
		Opened: ts, Closed: ts.Add(30 * time.Minute), Symbol: "BTCUSDT", Side: "long",
		Qty: decimal.NewFromInt(1), Entry: decimal.NewFromInt(100), Exit: decimal.NewFromInt(99), PnL: decimal.NewFromInt(-1),
	}})
	if err != nil {
		t.Fatalf("WriteTradesCSV: %v", err)
	}
	if err := WriteEquityCSV(equity, []EquityCSV{{TS: ts, Equity: decimal.RequireFromString("999.5")}}); err != nil {
		t.Fatalf("WriteEquityCSV: %v", err)
	}

	f, err := os.Open(trades)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := csv.NewReader(f).ReadAll()
	f.Close()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(recs) != 2 || recs[1][1] != "2024-01-01T00:45:00Z" || recs[1][7] != "-1.00000000" {
		t.Errorf("trades csv = %v", recs)
	}

	zipPath := filepath.Join(dir, "bundle.zip")
	if err := ZipFiles(zipPath, map[string]string{"trades.csv": trades, "equity.csv": equity}); err != nil {
		t.Fatalf("ZipFiles: %v", err)
	}
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 2 || zr.File[0].Name != "equity.csv" || zr.File[1].Name != "trades.csv" {
		t.Errorf("zip entries = %v", zr.File)
	}

	if err := ZipFiles(zipPath, map[string]string{"x": filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSimpleSVGChart(t *testing.T) {
	if SimpleSVGChart(0, 0, nil, nil, "empty") != nil {
		t.Error("empty line should give nil")
	}
	svg := string(SimpleSVGChart(0, 0, []Line{{0, 100}, {1, 99}, {2, 101}}, []Marker{{X: 1, Y: 99, Kind: "loss"}}, "a<b"))
	for _, want := range []string{"<svg", "<polyline", "#ff7a7a", "a&lt;b"} {
		if !strings.Contains(svg, want) {
			t.Errorf("svg missing %q", want)
		}
	}
}
