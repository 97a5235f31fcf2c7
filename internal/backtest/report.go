package backtest

import (
	"bytes"
	"fmt"
	"html"
)

// HTMLReport renders the summary page; chart is an inline SVG or nil.
func HTMLReport(title string, sum Summary, chart []byte, zipName string) []byte {
	var b bytes.Buffer
	t := html.EscapeString(title)
	fmt.Fprintf(&b, "<!doctype html><html><head><meta charset='utf-8'><title>%s</title>", t)
	b.WriteString("<style>body{font-family:Inter,system-ui,sans-serif;padding:16px;background:#0b0f17;color:#e6edf3}table{border-collapse:collapse}td,th{border:1px solid #1f2837;padding:6px 8px}</style>")
	b.WriteString("</head><body>")
	fmt.Fprintf(&b, "<h2>%s</h2>", t)
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(sum.String()))
	if len(chart) > 0 {
		b.Write(chart)
	}
	if zipName != "" {
		fmt.Fprintf(&b, "<p><a href='%s'>Download ZIP</a></p>", html.EscapeString(zipName))
	}
	b.WriteString("</body></html>")
	return b.Bytes()
}

func (s Summary) String() string {
	return fmt.Sprintf("PnL: %s | Trades: %d | WinRate: %.1f%% | PF: %.2f | MaxDD: %.2f%% | Equity: %s",
		s.PnL.StringFixed(4), s.Trades, s.WinRate*100, s.ProfitFactor, s.MaxDD, s.FinalEquity.StringFixed(2))
}
