package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minutespa/minutespa/internal/config"
	"github.com/minutespa/minutespa/internal/errors"
	"github.com/minutespa/minutespa/pkg/medium"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func initProject(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv(config.EnvMedium, "")
	dir := t.TempDir()
	out, err := runCLI(t, append([]string{"config", "init", "--dir", dir}, args...)...)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	return dir
}

func TestStateCommandsWithSQLite(t *testing.T) {
	dir := initProject(t, "--with-medium", "sqlite")
	cfgPath := filepath.Join(dir, config.ConfigFileName)

	steps := [][]string{
		{"state", "set", "theme", `"dark"`},
		{"state", "set", "count", "3"},
		{"state", "set", "--store", "prefs", "volume", "7"},
	}
	for _, args := range steps {
		if out, err := runCLI(t, append(args, "-c", cfgPath)...); err != nil {
			t.Fatalf("%v: %v\n%s", args, err, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, config.DefaultSQLitePath)); err != nil {
		t.Fatalf("sqlite file not created: %v", err)
	}

	out, err := runCLI(t, "state", "get", "theme", "-c", cfgPath)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != `"dark"` {
		t.Errorf("get theme = %q", out)
	}

	out, err = runCLI(t, "state", "keys", "-c", cfgPath)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if got := strings.Fields(out); strings.Join(got, ",") != "count,theme" {
		t.Errorf("keys = %v, want [count theme]", got)
	}

	if _, err := runCLI(t, "state", "delete", "theme", "-c", cfgPath); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = runCLI(t, "state", "get", "theme", "-c", cfgPath)
	if !errors.Is(err, "M301") {
		t.Errorf("get after delete error = %v, want M301", err)
	}

	if _, err := runCLI(t, "state", "reset", "-c", cfgPath); err != nil {
		t.Fatalf("reset: %v", err)
	}
	out, _ = runCLI(t, "state", "keys", "-c", cfgPath)
	if strings.TrimSpace(out) != "" {
		t.Errorf("keys after reset = %q, want none", out)
	}

	// Other stores are untouched.
	out, err = runCLI(t, "state", "get", "--store", "prefs", "volume", "-c", cfgPath)
	if err != nil || strings.TrimSpace(out) != "7" {
		t.Errorf("prefs.volume = %q, %v", out, err)
	}
}

func TestStateSetString(t *testing.T) {
	dir := initProject(t, "--with-medium", "sqlite")
	cfgPath := filepath.Join(dir, config.ConfigFileName)

	if _, err := runCLI(t, "state", "set", "--string", "n", "42", "-c", cfgPath); err != nil {
		t.Fatal(err)
	}
	out, _ := runCLI(t, "state", "get", "n", "-c", cfgPath)
	if strings.TrimSpace(out) != `"42"` {
		t.Errorf("get n = %q, want \"42\"", out)
	}
}

func TestStateKeysRequiresListableMedium(t *testing.T) {
	dir := initProject(t)
	cfgPath := filepath.Join(dir, config.ConfigFileName)

	_, err := runCLI(t, "state", "keys", "--medium", "none", "-c", cfgPath)
	if !errors.Is(err, "M300") {
		t.Errorf("error = %v, want M300", err)
	}
}

func TestConfigInit(t *testing.T) {
	dir := initProject(t, "--yaml")
	path := filepath.Join(dir, config.YAMLConfigFileName)

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Name != filepath.Base(dir) {
		t.Errorf("Name = %q, want %q", cfg.Name, filepath.Base(dir))
	}

	_, err = runCLI(t, "config", "init", "--yaml", "--dir", dir)
	if !errors.Is(err, "M300") {
		t.Errorf("second init error = %v, want M300", err)
	}
	if _, err := runCLI(t, "config", "init", "--yaml", "--force", "--dir", dir); err != nil {
		t.Errorf("init --force: %v", err)
	}

	_, err = runCLI(t, "config", "init", "--dir", t.TempDir(), "--with-medium", "floppy")
	if !errors.Is(err, "M201") {
		t.Errorf("invalid medium error = %v, want M201", err)
	}
}

func TestConfigShowAppliesOverrides(t *testing.T) {
	dir := initProject(t)
	cfgPath := filepath.Join(dir, config.ConfigFileName)

	out, err := runCLI(t, "config", "show", "-c", cfgPath, "--medium", "sqlite", "--store", "prefs")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, `"medium": "sqlite"`) || !strings.Contains(out, `"storeId": "prefs"`) {
		t.Errorf("show output:\n%s", out)
	}

	out, err = runCLI(t, "config", "validate", "-c", cfgPath)
	if err != nil || !strings.Contains(out, "is valid") {
		t.Errorf("validate = %q, %v", out, err)
	}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version = %q, want %q", out, version)
	}
}

func TestOpenMedium(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		check  func(t *testing.T, m medium.Medium)
	}{
		{
			name:   "none",
			mutate: func(c *config.Config) { c.State.Medium = config.MediumNone },
			check: func(t *testing.T, m medium.Medium) {
				if m != nil {
					t.Errorf("medium = %T, want nil", m)
				}
			},
		},
		{
			name:   "memory",
			mutate: func(c *config.Config) {},
			check: func(t *testing.T, m medium.Medium) {
				if _, ok := m.(*medium.Memory); !ok {
					t.Errorf("medium = %T, want *medium.Memory", m)
				}
			},
		},
		{
			name: "remote",
			mutate: func(c *config.Config) {
				c.State.Medium = config.MediumRemote
				c.State.Remote.URL = "http://localhost:1"
			},
			check: func(t *testing.T, m medium.Medium) {
				if _, ok := m.(*medium.Remote); !ok {
					t.Errorf("medium = %T, want *medium.Remote", m)
				}
			},
		},
		{
			name: "s3",
			mutate: func(c *config.Config) {
				c.State.Medium = config.MediumS3
				c.State.S3.Bucket = "bucket"
				c.State.S3.Endpoint = "http://localhost:9000"
				c.State.S3.PathStyle = true
			},
			check: func(t *testing.T, m medium.Medium) {
				if _, ok := m.(*medium.S3); !ok {
					t.Errorf("medium = %T, want *medium.S3", m)
				}
			},
		},
		{
			name: "cached",
			mutate: func(c *config.Config) {
				c.State.CacheSize = 8
			},
			check: func(t *testing.T, m medium.Medium) {
				if _, ok := m.(*medium.Cached); !ok {
					t.Errorf("medium = %T, want *medium.Cached", m)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			tt.mutate(cfg)
			b, err := openMedium(context.Background(), cfg)
			if err != nil {
				t.Fatalf("openMedium: %v", err)
			}
			defer b.Close()
			tt.check(t, b.medium)
		})
	}
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	if _, err := envCredentials(context.Background()); err == nil {
		t.Error("expected error without credentials")
	}

	t.Setenv("AWS_ACCESS_KEY_ID", "AKID")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	creds, err := envCredentials(context.Background())
	if err != nil {
		t.Fatalf("envCredentials: %v", err)
	}
	if creds.AccessKeyID != "AKID" || creds.SecretAccessKey != "secret" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw      string
		asString bool
		want     any
	}{
		{`"dark"`, false, "dark"},
		{`3`, false, float64(3)},
		{`true`, false, true},
		{`not json`, false, "not json"},
		{`3`, true, "3"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.raw, tt.asString); got != tt.want {
			t.Errorf("parseValue(%q, %v) = %#v, want %#v", tt.raw, tt.asString, got, tt.want)
		}
	}
}

func TestOriginChecker(t *testing.T) {
	if originChecker(nil) != nil {
		t.Error("empty allow list should keep the default check")
	}

	check := originChecker([]string{"https://app.example.com"})
	r := httptest.NewRequest("GET", "/ws/main", nil)
	r.Header.Set("Origin", "https://app.example.com")
	if !check(r) {
		t.Error("allowed origin rejected")
	}
	r.Header.Set("Origin", "https://evil.example.com")
	if check(r) {
		t.Error("unknown origin accepted")
	}

	if !originChecker([]string{"*"})(r) {
		t.Error("wildcard should accept any origin")
	}
}
