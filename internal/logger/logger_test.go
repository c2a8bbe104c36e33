package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLevelRoundTrip(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	cases := map[string]string{
		"debug":   "debug",
		"INFO":    "info",
		"warning": "warn",
		"error":   "error",
		"verbose": "info", // 未知值回落
	}
	for in, want := range cases {
		SetLevel(in)
		assert.Equal(t, want, Level(), "level=%q", in)
	}
}

func TestSetOutputRedirects(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	Infof("行情轮询开始 assets=%d", 3)
	assert.Contains(t, buf.String(), "行情轮询开始 assets=3")
}

func TestInfoBlockSkipsBlankLines(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	InfoBlock("\nASSET  PAYOUT\n\nBTCUSD-OTC  85\n")
	out := buf.String()
	assert.Contains(t, out, "ASSET  PAYOUT")
	assert.Contains(t, out, "BTCUSD-OTC  85")
}
