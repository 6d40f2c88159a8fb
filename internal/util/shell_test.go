package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote(t *testing.T) {
	tests := map[string]string{
		"":              "''",
		"train.py":      "'train.py'",
		"--epochs 10":   "'--epochs 10'",
		"don't":         `'don'\''t'`,
		"$HOME":         "'$HOME'",
		"$(nvidia-smi)": "'$(nvidia-smi)'",
		"`hostname`":    "'`hostname`'",
		"a;rm -rf /":    "'a;rm -rf /'",
	}
	for in, want := range tests {
		assert.Equal(t, want, ShellQuote(in), in)
	}
}

func TestShellQuotePreserveTilde(t *testing.T) {
	tests := map[string]string{
		"~":            "~",
		"~/work":       "~/'work'",
		"~/runs/exp 1": "~/'runs/exp 1'",
		"~/it's":       `~/'it'\''s'`,
		"/srv/data":    "'/srv/data'",
		"checkpoints":  "'checkpoints'",
		"~ubuntu/work": "'~ubuntu/work'",
		"":             "''",
	}
	for in, want := range tests {
		assert.Equal(t, want, ShellQuotePreserveTilde(in), in)
	}
}

func TestRsyncQuote(t *testing.T) {
	tests := map[string]string{
		"BatchMode=yes":             "BatchMode=yes",
		"/keys/my key":              "'/keys/my key'",
		"":                          "''",
		`C:\keys\id`:                `'C:\keys\id'`,
		"ssh -W '[%h]:%p' jump":     "'ssh -W ''[%h]:%p'' jump'",
		`nc -X connect -x "p:3128"`: `'nc -X connect -x "p:3128"'`,
	}
	for in, want := range tests {
		assert.Equal(t, want, RsyncQuote(in), in)
	}
}

func TestRsyncJoin(t *testing.T) {
	assert.Equal(t, "-i '/keys/my key' -o BatchMode=yes",
		RsyncJoin([]string{"-i", "/keys/my key", "-o", "BatchMode=yes"}))
	assert.Equal(t, "", RsyncJoin(nil))
}
