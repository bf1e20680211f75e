package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Port != "8080" {
		t.Errorf("Port = %q, want 8080", c.Port)
	}
	if !c.UseLocalAnalyzer {
		t.Error("UseLocalAnalyzer should default to true")
	}
	d := c.Delegation()
	if d.MaxAttempts != 2 || d.Timeout != 45*time.Second || d.RetryDelay != 5*time.Second {
		t.Errorf("unexpected delegation defaults: %+v", d)
	}
	if c.SampleLimit != 100 {
		t.Errorf("SampleLimit = %d, want 100", c.SampleLimit)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("port: \"9090\"\nanalysis_max_attempts: 3\nanalysis_timeout: 10s\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ANALYSIS_MAX_ATTEMPTS", "4")
	t.Setenv("USE_LOCAL_ANALYZER", "false")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Port != "9090" {
		t.Errorf("Port = %q, want 9090", c.Port)
	}
	if c.AnalysisMaxAttempts != 4 {
		t.Errorf("AnalysisMaxAttempts = %d, want 4", c.AnalysisMaxAttempts)
	}
	if c.AnalysisTimeout != 10*time.Second {
		t.Errorf("AnalysisTimeout = %v, want 10s", c.AnalysisTimeout)
	}
	if c.UseLocalAnalyzer {
		t.Error("UseLocalAnalyzer should be overridden to false")
	}
}

func TestNormalizeReplacesInvalidValues(t *testing.T) {
	c := &Config{AnalysisMaxAttempts: 0, AnalysisTimeout: -1, AnalysisRetryDelay: -1, SampleLimit: 0}
	c.normalize()
	if c.AnalysisMaxAttempts != 2 || c.AnalysisTimeout != 45*time.Second || c.AnalysisRetryDelay != 5*time.Second {
		t.Errorf("normalize left invalid values: %+v", c)
	}
	if c.SampleLimit != 100 || c.Port != "8080" {
		t.Errorf("normalize defaults: %+v", c)
	}
}

func TestMaskedAPIKey(t *testing.T) {
	c := &Config{AnalysisAPIKey: "sk-1234567890"}
	if got := c.MaskedAPIKey(); got != "sk-12345..." {
		t.Errorf("MaskedAPIKey = %q", got)
	}
}
