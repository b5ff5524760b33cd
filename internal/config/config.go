package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Extraction method constants
	MethodAuto      = "auto"
	MethodVision    = "vision"
	MethodLegacyOCR = "legacy_ocr"

	// Output format constants
	FormatMNR  = "mnr"
	FormatASH  = "ash"
	FormatBoth = "both"

	// Default values
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB
	DefaultCacheTTLMin = 30
	DefaultVisionModel = "gpt-4o"
	DefaultVisionURL   = "https://api.openai.com/v1"
	DefaultRasterDPI   = 300
	DefaultWorkers     = 4
	DefaultOutputDir   = "outputs"
	DefaultTemplateDir = "templates"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the form processing pipeline
type Config struct {
	// Extraction configuration
	ExtractionMethod string // "auto", "vision", "legacy_ocr"
	Fallback         bool   // try the other strategy when the chosen one fails

	// Vision extractor configuration
	VisionAPIKey  string
	VisionBaseURL string
	VisionModel   string

	// Legacy OCR configuration
	TesseractBin string
	PdftoppmBin  string
	RasterDPI    int

	// Processing configuration
	OutputFormat     string // "mnr", "ash", "both"
	EnhancedFilling  bool
	SaveIntermediate bool
	IncludeMetadata  bool

	// Directories
	TemplateDirectory string
	OutputDirectory   string

	// Application configuration
	Version     string
	LogLevel    string
	MaxFileSize int64 // Maximum input document size in bytes
	CacheTTLMin int   // Extraction cache TTL in minutes
	Workers     int   // Bounded pool size for concurrent fill work
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ExtractionMethod:  MethodAuto,
		Fallback:          true,
		VisionAPIKey:      os.Getenv("OPENAI_API_KEY"),
		VisionBaseURL:     DefaultVisionURL,
		VisionModel:       DefaultVisionModel,
		TesseractBin:      "tesseract",
		PdftoppmBin:       "pdftoppm",
		RasterDPI:         DefaultRasterDPI,
		OutputFormat:      FormatASH,
		EnhancedFilling:   true,
		SaveIntermediate:  false,
		IncludeMetadata:   true,
		TemplateDirectory: DefaultTemplateDir,
		OutputDirectory:   DefaultOutputDir,
		Version:           "1.0.0",
		LogLevel:          DefaultLogLevel,
		MaxFileSize:       DefaultMaxFileSize,
		CacheTTLMin:       DefaultCacheTTLMin,
		Workers:           DefaultWorkers,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.TemplateDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.TemplateDirectory); err == nil {
			cfg.TemplateDirectory = expandedPath
		}
	}
	if cfg.OutputDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.OutputDirectory); err == nil {
			cfg.OutputDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix("FORMPIPE")
	viper.AutomaticEnv()

	viper.SetDefault("method", cfg.ExtractionMethod)
	viper.SetDefault("fallback", cfg.Fallback)
	viper.SetDefault("format", cfg.OutputFormat)
	viper.SetDefault("templatedir", cfg.TemplateDirectory)
	viper.SetDefault("outputdir", cfg.OutputDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("cachettl", cfg.CacheTTLMin)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("visionmodel", cfg.VisionModel)
	viper.SetDefault("visionbaseurl", cfg.VisionBaseURL)
	viper.SetDefault("enhanced", cfg.EnhancedFilling)
	viper.SetDefault("saveintermediate", cfg.SaveIntermediate)
	viper.SetDefault("metadata", cfg.IncludeMetadata)
	viper.SetDefault("tesseract", cfg.TesseractBin)
	viper.SetDefault("pdftoppm", cfg.PdftoppmBin)
	viper.SetDefault("dpi", cfg.RasterDPI)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("method", cfg.ExtractionMethod, "Extraction method: 'auto', 'vision', or 'legacy_ocr'")
	pflag.Bool("fallback", cfg.Fallback, "Fall back to the other extraction strategy on failure")
	pflag.String("format", cfg.OutputFormat, "Output format: 'mnr', 'ash', or 'both'")
	pflag.String("templatedir", cfg.TemplateDirectory, "Directory containing PDF form templates")
	pflag.String("outputdir", cfg.OutputDirectory, "Directory for filled PDFs and intermediate files")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum input document size in bytes")
	pflag.Int("cachettl", cfg.CacheTTLMin, "Extraction cache TTL in minutes")
	pflag.Int("workers", cfg.Workers, "Bounded worker pool size for PDF fill work")
	pflag.String("visionmodel", cfg.VisionModel, "Vision model identifier")
	pflag.String("visionbaseurl", cfg.VisionBaseURL, "Base URL for the vision API")
	pflag.Bool("enhanced", cfg.EnhancedFilling, "Prefer structured form-field filling over basic matching")
	pflag.Bool("saveintermediate", cfg.SaveIntermediate, "Write intermediate JSON next to the filled PDF")
	pflag.Bool("metadata", cfg.IncludeMetadata, "Attach pipeline metadata to results")
	pflag.String("tesseract", cfg.TesseractBin, "Path to the tesseract binary")
	pflag.String("pdftoppm", cfg.PdftoppmBin, "Path to the pdftoppm binary")
	pflag.Int("dpi", cfg.RasterDPI, "Rasterization DPI for PDF inputs")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"method", "fallback", "format", "templatedir", "outputdir",
		"loglevel", "maxfilesize", "cachettl", "workers",
		"visionmodel", "visionbaseurl", "enhanced", "saveintermediate",
		"metadata", "tesseract", "pdftoppm", "dpi",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nformpipe - Medical intake form extraction and PDF filling pipeline\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s scan.pdf                                # vision extraction, ASH output\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --method=legacy_ocr scan.pdf            # force legacy OCR\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --format=both --saveintermediate scan.pdf\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FORMPIPE_METHOD       Extraction method\n")
		fmt.Fprintf(os.Stderr, "  FORMPIPE_FORMAT       Output format\n")
		fmt.Fprintf(os.Stderr, "  FORMPIPE_TEMPLATEDIR  Template directory\n")
		fmt.Fprintf(os.Stderr, "  FORMPIPE_OUTPUTDIR    Output directory\n")
		fmt.Fprintf(os.Stderr, "  FORMPIPE_LOGLEVEL     Log level\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY        Vision API key\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.ExtractionMethod = viper.GetString("method")
	cfg.Fallback = viper.GetBool("fallback")
	cfg.OutputFormat = viper.GetString("format")
	cfg.TemplateDirectory = viper.GetString("templatedir")
	cfg.OutputDirectory = viper.GetString("outputdir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.CacheTTLMin = viper.GetInt("cachettl")
	cfg.Workers = viper.GetInt("workers")
	cfg.VisionModel = viper.GetString("visionmodel")
	cfg.VisionBaseURL = viper.GetString("visionbaseurl")
	cfg.EnhancedFilling = viper.GetBool("enhanced")
	cfg.SaveIntermediate = viper.GetBool("saveintermediate")
	cfg.IncludeMetadata = viper.GetBool("metadata")
	cfg.TesseractBin = viper.GetString("tesseract")
	cfg.PdftoppmBin = viper.GetString("pdftoppm")
	cfg.RasterDPI = viper.GetInt("dpi")

	if key := viper.GetString("apikey"); key != "" {
		cfg.VisionAPIKey = key
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.ExtractionMethod {
	case MethodAuto, MethodVision, MethodLegacyOCR:
	default:
		return fmt.Errorf("invalid extraction method: %s (must be one of: auto, vision, legacy_ocr)", c.ExtractionMethod)
	}

	switch c.OutputFormat {
	case FormatMNR, FormatASH, FormatBoth:
	default:
		return fmt.Errorf("invalid output format: %s (must be one of: mnr, ash, both)", c.OutputFormat)
	}

	if c.TemplateDirectory == "" {
		return errors.New("template directory cannot be empty")
	}

	if c.OutputDirectory == "" {
		return errors.New("output directory cannot be empty")
	}

	// Check if output directory exists, create if it doesn't
	if _, err := os.Stat(c.OutputDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.OutputDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create output directory %s: %w", c.OutputDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access output directory %s: %w", c.OutputDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.CacheTTLMin <= 0 {
		return errors.New("cache TTL must be positive")
	}

	if c.Workers <= 0 {
		return errors.New("worker pool size must be positive")
	}

	if c.RasterDPI < 72 || c.RasterDPI > 1200 {
		return fmt.Errorf("raster DPI out of range: %d (must be between 72 and 1200)", c.RasterDPI)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// DualOutput returns true when both target formats are requested
func (c *Config) DualOutput() bool {
	return c.OutputFormat == FormatBoth
}

// String returns a string representation of the configuration.
// The vision API key is deliberately omitted.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Method: %s, Format: %s, TemplateDir: %s, OutputDir: %s, LogLevel: %s, MaxFileSize: %d}",
		c.ExtractionMethod, c.OutputFormat, c.TemplateDirectory, c.OutputDirectory, c.LogLevel, c.MaxFileSize)
}
