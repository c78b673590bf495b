package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
	if cfg.Processing.Filter != "hamming" {
		t.Errorf("Expected default filter hamming, got %s", cfg.Processing.Filter)
	}
	if cfg.Angles.Stop != 180 || cfg.Angles.Step != 1 {
		t.Errorf("Expected angles [0,180) step 1, got %+v", cfg.Angles)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Input.Phantom != "head" {
		t.Errorf("Expected default phantom, got %s", cfg.Input.Phantom)
	}
}

// TestSaveLoadRoundTrip writes a modified config and reads it back
func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "xrayct.yaml")
	cfg := DefaultConfig()
	cfg.Processing.Filter = "ramp"
	cfg.Processing.Backend = "godsp"
	cfg.Angles.Step = 0.5
	cfg.Output.Palette = "heat"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Processing.Filter != "ramp" || loaded.Processing.Backend != "godsp" {
		t.Errorf("Expected ramp/godsp, got %s/%s", loaded.Processing.Filter, loaded.Processing.Backend)
	}
	if loaded.Angles.Step != 0.5 || loaded.Output.Palette != "heat" {
		t.Errorf("Expected step 0.5 and heat palette, got %v and %s", loaded.Angles.Step, loaded.Output.Palette)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("processing:\n  filter: none\nangles:\n  step: 45\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.Filter != "none" || cfg.Angles.Step != 45 {
		t.Errorf("Expected overrides to apply, got %s and %v", cfg.Processing.Filter, cfg.Angles.Step)
	}
	if cfg.Angles.Stop != 180 || cfg.Input.Size != 128 {
		t.Errorf("Expected untouched fields to keep defaults, got stop %v size %d", cfg.Angles.Stop, cfg.Input.Size)
	}
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("processing: [unterminated"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"filter":   func(c *Config) { c.Processing.Filter = "sinc" },
		"backend":  func(c *Config) { c.Processing.Backend = "fftw" },
		"step":     func(c *Config) { c.Angles.Step = 0 },
		"angles":   func(c *Config) { c.Angles.Stop = math.Inf(1) },
		"phantom":  func(c *Config) { c.Input.Phantom = "teapot" },
		"size":     func(c *Config) { c.Input.Size = 0 },
		"bins":     func(c *Config) { c.Input.Size = 100 },
		"negative": func(c *Config) { c.Input.Size = -4 },
		"palette":  func(c *Config) { c.Output.Palette = "rainbow" },
		"image": func(c *Config) {
			c.Input.Image = "in.png"
			c.Input.Size = 48
		},
		"stride": func(c *Config) {
			c.Output.SaveFrames = true
			c.Output.FrameStride = 0
		},
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidateSizes(t *testing.T) {
	for _, size := range []int{1, 16, 64, 256} {
		cfg := DefaultConfig()
		cfg.Input.Size = size
		if err := cfg.Validate(); err != nil {
			t.Errorf("Expected size %d to be valid, got %v", size, err)
		}
	}

	// An image kept at its own size is only checked once loaded
	cfg := DefaultConfig()
	cfg.Input.Image = "in.png"
	cfg.Input.Size = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected unresized image to be valid, got %v", err)
	}
}
