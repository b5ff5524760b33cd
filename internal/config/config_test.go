package config

import (
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test default values
	if cfg.ExtractionMethod != MethodAuto {
		t.Errorf("Expected default method to be 'auto', got '%s'", cfg.ExtractionMethod)
	}

	if !cfg.Fallback {
		t.Error("Expected fallback to be enabled by default")
	}

	if cfg.OutputFormat != FormatASH {
		t.Errorf("Expected default format to be 'ash', got '%s'", cfg.OutputFormat)
	}

	if cfg.VisionModel != DefaultVisionModel {
		t.Errorf("Expected default vision model to be '%s', got '%s'", DefaultVisionModel, cfg.VisionModel)
	}

	if cfg.VisionBaseURL != DefaultVisionURL {
		t.Errorf("Expected default vision base URL to be '%s', got '%s'", DefaultVisionURL, cfg.VisionBaseURL)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level to be 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.MaxFileSize != 50*1024*1024 {
		t.Errorf("Expected default max file size to be 50MB, got %d", cfg.MaxFileSize)
	}

	if cfg.CacheTTLMin != DefaultCacheTTLMin {
		t.Errorf("Expected default cache TTL to be %d minutes, got %d", DefaultCacheTTLMin, cfg.CacheTTLMin)
	}

	if cfg.Workers != DefaultWorkers {
		t.Errorf("Expected default worker count to be %d, got %d", DefaultWorkers, cfg.Workers)
	}

	if cfg.RasterDPI != DefaultRasterDPI {
		t.Errorf("Expected default raster DPI to be %d, got %d", DefaultRasterDPI, cfg.RasterDPI)
	}
}

func validTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TemplateDirectory = t.TempDir()
	cfg.OutputDirectory = t.TempDir()
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "valid vision method",
			mutate:  func(c *Config) { c.ExtractionMethod = MethodVision },
			wantErr: false,
		},
		{
			name:    "valid legacy OCR method",
			mutate:  func(c *Config) { c.ExtractionMethod = MethodLegacyOCR },
			wantErr: false,
		},
		{
			name:    "valid dual format",
			mutate:  func(c *Config) { c.OutputFormat = FormatBoth },
			wantErr: false,
		},
		{
			name:    "invalid extraction method",
			mutate:  func(c *Config) { c.ExtractionMethod = "psychic" },
			wantErr: true,
		},
		{
			name:    "invalid output format",
			mutate:  func(c *Config) { c.OutputFormat = "docx" },
			wantErr: true,
		},
		{
			name:    "empty template directory",
			mutate:  func(c *Config) { c.TemplateDirectory = "" },
			wantErr: true,
		},
		{
			name:    "empty output directory",
			mutate:  func(c *Config) { c.OutputDirectory = "" },
			wantErr: true,
		},
		{
			name:    "invalid max file size",
			mutate:  func(c *Config) { c.MaxFileSize = 0 },
			wantErr: true,
		},
		{
			name:    "invalid cache TTL",
			mutate:  func(c *Config) { c.CacheTTLMin = 0 },
			wantErr: true,
		},
		{
			name:    "invalid worker count",
			mutate:  func(c *Config) { c.Workers = -1 },
			wantErr: true,
		},
		{
			name:    "DPI too low",
			mutate:  func(c *Config) { c.RasterDPI = 50 },
			wantErr: true,
		},
		{
			name:    "DPI too high",
			mutate:  func(c *Config) { c.RasterDPI = 2400 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateCreatesOutputDirectory(t *testing.T) {
	cfg := validTestConfig(t)
	cfg.OutputDirectory = cfg.OutputDirectory + "/nested/outputs"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config.Validate() unexpected error: %v", err)
	}
}

func TestConfigIsDebug(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     bool
	}{
		{
			name:     "debug level",
			logLevel: "debug",
			want:     true,
		},
		{
			name:     "info level",
			logLevel: "info",
			want:     false,
		},
		{
			name:     "warn level",
			logLevel: "warn",
			want:     false,
		},
		{
			name:     "error level",
			logLevel: "error",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			if got := cfg.IsDebug(); got != tt.want {
				t.Errorf("Config.IsDebug() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigDualOutput(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   bool
	}{
		{
			name:   "both formats",
			format: FormatBoth,
			want:   true,
		},
		{
			name:   "ash only",
			format: FormatASH,
			want:   false,
		},
		{
			name:   "mnr only",
			format: FormatMNR,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{OutputFormat: tt.format}
			if got := cfg.DualOutput(); got != tt.want {
				t.Errorf("Config.DualOutput() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		ExtractionMethod:  MethodVision,
		OutputFormat:      FormatBoth,
		TemplateDirectory: "/srv/templates",
		OutputDirectory:   "/srv/outputs",
		LogLevel:          "debug",
		MaxFileSize:       1024,
		VisionAPIKey:      "sk-secret",
	}

	result := cfg.String()

	expectedSubstrings := []string{
		"Method: vision",
		"Format: both",
		"TemplateDir: /srv/templates",
		"OutputDir: /srv/outputs",
		"LogLevel: debug",
		"MaxFileSize: 1024",
	}

	for _, substr := range expectedSubstrings {
		if !strings.Contains(result, substr) {
			t.Errorf("Config.String() result doesn't contain expected substring: %s\nGot: %s", substr, result)
		}
	}

	// The API key must never leak through String()
	if strings.Contains(result, "sk-secret") {
		t.Errorf("Config.String() leaked the vision API key: %s", result)
	}
}

func TestConfigValidateLogLevels(t *testing.T) {
	validLevels := []string{"debug", "info", "warn", "error"}
	invalidLevels := []string{"DEBUG", "INFO", "trace", "fatal", ""}

	// Test valid log levels
	for _, level := range validLevels {
		t.Run("valid_"+level, func(t *testing.T) {
			cfg := validTestConfig(t)
			cfg.LogLevel = level

			if err := cfg.Validate(); err != nil {
				t.Errorf("Config.Validate() should accept log level '%s', got error: %v", level, err)
			}
		})
	}

	// Test invalid log levels
	for _, level := range invalidLevels {
		t.Run("invalid_"+level, func(t *testing.T) {
			cfg := validTestConfig(t)
			cfg.LogLevel = level

			if err := cfg.Validate(); err == nil {
				t.Errorf("Config.Validate() should reject log level '%s'", level)
			}
		})
	}
}
