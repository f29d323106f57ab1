package config

import "testing"

func validConfig() Config {
	return Config{
		BaseURL:      "https://mail.example.com",
		ClientID:     "client-1",
		TokenURL:     "https://auth.example.com/token",
		Mode:         ModeMbox,
		PageSize:     100,
		ImageWorkers: 4,
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Mode != ModeMbox {
		t.Errorf("default mode = %q, want mbox", cfg.Mode)
	}
	if cfg.PageSize != 100 {
		t.Errorf("default page size = %d, want 100", cfg.PageSize)
	}
	if !cfg.IncludeAttachments {
		t.Error("attachments should default to on")
	}
	if cfg.RecompressImages {
		t.Error("image recompression should default to off")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("MAILFERRY_BASE_URL", "https://mail.example.com")
	t.Setenv("MAILFERRY_MODE", "both")
	t.Setenv("MAILFERRY_PAGE_SIZE", "25")
	t.Setenv("MAILFERRY_ATTACHMENTS", "false")

	cfg := Load()
	if cfg.BaseURL != "https://mail.example.com" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.Mode != ModeBoth {
		t.Errorf("mode = %q, want both", cfg.Mode)
	}
	if cfg.PageSize != 25 {
		t.Errorf("page size = %d, want 25", cfg.PageSize)
	}
	if cfg.IncludeAttachments {
		t.Error("attachments should be off")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAILFERRY_PAGE_SIZE", "lots")
	t.Setenv("MAILFERRY_ATTACHMENTS", "maybe")

	cfg := Load()
	if cfg.PageSize != 100 {
		t.Errorf("malformed int should fall back, got %d", cfg.PageSize)
	}
	if !cfg.IncludeAttachments {
		t.Error("malformed bool should fall back to default")
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base url", func(c *Config) { c.BaseURL = "" }},
		{"missing client id", func(c *Config) { c.ClientID = "" }},
		{"missing token url", func(c *Config) { c.TokenURL = "" }},
		{"bad mode", func(c *Config) { c.Mode = "tarball" }},
		{"zero page size", func(c *Config) { c.PageSize = 0 }},
		{"zero image workers", func(c *Config) { c.ImageWorkers = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
