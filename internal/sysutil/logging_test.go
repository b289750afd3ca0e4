package sysutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func preserveLogging(t *testing.T) {
	t.Helper()
	lvl, logger, format, ts := zerolog.GlobalLevel(), log.Logger, zerolog.TimeFieldFormat, zerolog.TimestampFunc
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(lvl)
		log.Logger = logger
		zerolog.TimeFieldFormat = format
		zerolog.TimestampFunc = ts
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":     zerolog.TraceLevel,
		"  DeBuG  ": zerolog.DebugLevel,
		"info":      zerolog.InfoLevel,
		"":          zerolog.InfoLevel,
		"warn":      zerolog.WarnLevel,
		"warning":   zerolog.WarnLevel,
		"error":     zerolog.ErrorLevel,
		"fatal":     zerolog.FatalLevel,
		"panic":     zerolog.PanicLevel,
		"verbose":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestSetupLogger_JSONFields(t *testing.T) {
	preserveLogging(t)

	var buf bytes.Buffer
	SetupLogger(LogOptions{Level: "warn", Service: "mailer", Version: "v1.4.0", Out: &buf})
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("level = %v", zerolog.GlobalLevel())
	}

	log.Info().Msg("dropped")
	log.Warn().Str("user_id", "u1").Msg("send slow")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want one line, got %d: %q", len(lines), buf.String())
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("json: %v", err)
	}
	if ev["service"] != "mailer" || ev["version"] != "v1.4.0" || ev["message"] != "send slow" || ev["user_id"] != "u1" {
		t.Fatalf("event = %v", ev)
	}
	if ts, _ := ev["time"].(string); !strings.HasSuffix(ts, "Z") || !strings.Contains(ts, ".") {
		t.Fatalf("time = %v", ev["time"])
	}
}

func TestSetupLogger_Pretty(t *testing.T) {
	preserveLogging(t)

	var buf bytes.Buffer
	SetupLogger(LogOptions{Pretty: true, Out: &buf})
	log.Info().Msg("hello console")
	if out := buf.String(); strings.HasPrefix(out, "{") || !strings.Contains(out, "hello console") {
		t.Fatalf("console output = %q", out)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("FirstNonEmpty() = %q", got)
	}
	if got := FirstNonEmpty(" ", "\t", "\n"); got != "" {
		t.Fatalf("FirstNonEmpty(blanks) = %q", got)
	}
	if got := FirstNonEmpty("   ", "  v2  ", "dev"); got != "  v2  " {
		t.Fatalf("FirstNonEmpty = %q", got)
	}
}
