package logx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupFiltersByLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer
	setup(&buf, "WARN", false)

	log.Info().Msg("quiet")
	log.Warn().Str("symbol", "BTCUSDT").Msg("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"symbol":"BTCUSDT"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"debug": zerolog.DebugLevel, "warning": zerolog.WarnLevel, "error": zerolog.ErrorLevel, "": zerolog.InfoLevel, "verbose": zerolog.InfoLevel,
	} {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
