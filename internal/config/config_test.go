package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nicolas-rempulski/h-ubu/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadHubConfigOverlaysDefaults(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
name = "edge"

[admin]
addr = "127.0.0.1:9500"
`)
	cfg, err := LoadHubConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "edge" {
		t.Fatalf("name = %q", cfg.Name)
	}
	if cfg.Admin.Addr != "127.0.0.1:9500" {
		t.Fatalf("admin.addr = %q", cfg.Admin.Addr)
	}
	if !cfg.Admin.Enabled {
		t.Fatalf("admin.enabled default lost")
	}
	if cfg.Log.Level != "info" || !cfg.Log.Timestamp {
		t.Fatalf("log defaults lost: %+v", cfg.Log)
	}
}

func TestLoadHubConfigComponentTables(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[admin]
addr = ":9401"
cors_origins = ["http://a", "http://b"]

[components.admin]
read_header_timeout = "2s"

[components.greeter]
name = "hello"
greeting = "hi"
`)
	cfg, err := LoadHubConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	greeter := cfg.ComponentConfig("greeter")
	if got, _ := greeter.String("name"); got != "hello" {
		t.Fatalf("greeter name = %q", got)
	}
	admin := cfg.ComponentConfig(AdminComponent)
	if got, _ := admin.String("addr"); got != ":9401" {
		t.Fatalf("admin addr = %q", got)
	}
	if got, _ := admin.String("read_header_timeout"); got != "2s" {
		t.Fatalf("admin read_header_timeout = %q", got)
	}
	if origins := admin.Strings("cors_origins"); len(origins) != 2 || origins[1] != "http://b" {
		t.Fatalf("admin cors_origins = %v", origins)
	}
	if len(cfg.ComponentConfig("missing")) != 0 {
		t.Fatalf("expected empty config for unknown component")
	}
}

func TestLoadHubConfigRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
name = "edge"
adress = ":1"
`)
	_, err := LoadHubConfig(path)
	if err == nil || !strings.Contains(err.Error(), "adress") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateHubConfig(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name    string
		mutate  func(*HubConfig)
		wantErr string
	}{
		{name: "defaults"},
		{name: "empty name", mutate: func(c *HubConfig) { c.Name = " " }, wantErr: "missing name"},
		{name: "bad level", mutate: func(c *HubConfig) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "bad format", mutate: func(c *HubConfig) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "admin without addr", mutate: func(c *HubConfig) { c.Admin.Addr = "" }, wantErr: "admin.addr"},
		{name: "admin disabled without addr", mutate: func(c *HubConfig) {
			c.Admin.Enabled = false
			c.Admin.Addr = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultHubConfig()
			if tc.mutate != nil {
				tc.mutate(&cfg)
			}
			err := ValidateHubConfig(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v want %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultHubConfig()
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	cfg.Log.NoColor = true
	got := cfg.LoggingConfig()
	if got.Level != zerolog.DebugLevel || !got.JSON || !got.NoColor || !got.Timestamp {
		t.Fatalf("logging config = %+v", got)
	}
}

func TestTemplatesLoad(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{"hub", "minimal"} {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("write %s: %v", kind, err)
		}
		if err := WriteTemplate(path, kind, false); err == nil {
			t.Fatalf("expected refusal to overwrite %s", kind)
		}
		if _, err := LoadHubConfig(path); err != nil {
			t.Fatalf("load %s template: %v", kind, err)
		}
	}
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
