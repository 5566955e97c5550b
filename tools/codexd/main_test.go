package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/bruwbird/codex/internal/config"
)

func TestParseFlags(t *testing.T) {
	fl, err := parseFlags([]string{"-workspace", "/tmp/ws", "-startup_timeout", "5s"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if fl.workspace != "/tmp/ws" || fl.startupTimeout != 5*time.Second {
		t.Fatalf("unexpected flags: %+v", fl)
	}

	if _, err := parseFlags([]string{"-startup_timeout", "0s"}, io.Discard); err == nil {
		t.Fatalf("expected error for zero startup timeout")
	}
	if _, err := parseFlags([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	envWorkspace := t.TempDir()
	flagWorkspace := t.TempDir()

	cfg, err := loadConfig(context.Background(), flags{
		workspace: flagWorkspace,
		httpAddr:  "127.0.0.1:9999",
	}, map[string]string{
		"CODEX_WORKSPACE":  envWorkspace,
		"CODEXD_HTTP_ADDR": "127.0.0.1:1111",
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Workspace != flagWorkspace {
		t.Fatalf("Workspace: got %q, want %q", cfg.Workspace, flagWorkspace)
	}
	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Fatalf("HTTPAddr: got %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel: got %q, want info", cfg.LogLevel)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	ws := t.TempDir()

	cfg, err := loadConfig(context.Background(), flags{}, map[string]string{"CODEX_WORKSPACE": ws})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTPAddr != config.DefaultHTTPAddr {
		t.Fatalf("HTTPAddr: got %q, want %q", cfg.HTTPAddr, config.DefaultHTTPAddr)
	}
	if cfg.InsecureSkipTLSVerify {
		t.Fatalf("TLS verification must be on by default")
	}
}

func TestLoadConfig_InvalidAddr(t *testing.T) {
	_, err := loadConfig(context.Background(), flags{httpAddr: "nope"}, map[string]string{"CODEX_WORKSPACE": t.TempDir()})
	if err == nil {
		t.Fatalf("expected error for invalid http_addr")
	}
}
