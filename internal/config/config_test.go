package config

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestConfigGames(t *testing.T) {
	c := &Config{SupportedGames: "BPR1, BPR2 ,BPG1"}
	games := c.Games()
	for _, want := range []string{"BPR1", "BPR2", "BPG1"} {
		if _, ok := games[want]; !ok {
			t.Errorf("expected %q in games set, got %v", want, games)
		}
	}
	if len(games) != 3 {
		t.Errorf("expected 3 games, got %d", len(games))
	}
}

func TestConfigLogLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"WARNING": zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"DEBUG":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"ERROR":   zapcore.ErrorLevel,
		"bogus":   zapcore.WarnLevel,
	}
	for in, want := range cases {
		c := &Config{LoggingLevel: in}
		if got := c.LogLevel(); got != want {
			t.Errorf("LogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigServerNick(t *testing.T) {
	c := &Config{ServerName: "servname"}
	nick, err := c.ServerNick()
	if err != nil {
		t.Fatalf("ServerNick: %v", err)
	}
	if nick != "servname" || len(nick) != 8 {
		t.Fatalf("got %q", nick)
	}
}

func TestConfigValidate(t *testing.T) {
	c := &Config{Port: 4096, PingTime: 5, MaxMissedPongs: 2, MaxPlayers: 9}
	if err := c.validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	bad := &Config{Port: 0, PingTime: 5}
	if err := bad.validate(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}

	bad = &Config{Port: 4096, PingTime: 0}
	if err := bad.validate(); err == nil {
		t.Fatal("expected error for non-positive ping interval")
	}
}
