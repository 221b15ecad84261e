// Package config loads the build configuration.
//
// Sources, later ones winning:
//   - built-in defaults
//   - c3build.yaml in the project root (optional)
//   - .env in the project root (optional, never overrides the real environment)
//   - C3_* environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"c3addon-builder/internal/i18n"
)

// FileName is the build configuration file looked up in the project root.
const FileName = "c3build.yaml"

// Config is the build configuration. Paths are relative to Root.
type Config struct {
	Root string `yaml:"-"`

	Minify        bool     `yaml:"minify" env:"C3_MINIFY"`
	Host          string   `yaml:"host" env:"C3_HOST"`
	Port          int      `yaml:"port" env:"C3_PORT"`
	SourcePath    string   `yaml:"sourcePath" env:"C3_SOURCE_PATH"`
	AddonScript   string   `yaml:"addonScript" env:"C3_ADDON_SCRIPT"`
	RuntimeScript string   `yaml:"runtimeScript" env:"C3_RUNTIME_SCRIPT"`
	EditorScripts []string `yaml:"editorScripts" env:"C3_EDITOR_SCRIPTS"`
	LangPath      string   `yaml:"langPath" env:"C3_LANG_PATH"`
	LibPath       string   `yaml:"libPath" env:"C3_LIB_PATH"`
	ExportPath    string   `yaml:"exportPath" env:"C3_EXPORT_PATH"`
	DistPath      string   `yaml:"distPath" env:"C3_DIST_PATH"`
	DocsPath      string   `yaml:"docsPath" env:"C3_DOCS_PATH"`
	Languages     []string `yaml:"languages" env:"C3_LANGUAGES"`

	Publish   Publish   `yaml:"publish"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Publish configures the S3-compatible upload target.
type Publish struct {
	Endpoint  string `yaml:"endpoint" env:"C3_PUBLISH_ENDPOINT"`
	Bucket    string `yaml:"bucket" env:"C3_PUBLISH_BUCKET"`
	Prefix    string `yaml:"prefix" env:"C3_PUBLISH_PREFIX"`
	Region    string `yaml:"region" env:"C3_PUBLISH_REGION"`
	AccessKey string `yaml:"-" env:"C3_PUBLISH_ACCESS_KEY"`
	SecretKey string `yaml:"-" env:"C3_PUBLISH_SECRET_KEY"`
	UseSSL    bool   `yaml:"useSSL" env:"C3_PUBLISH_USE_SSL"`
}

// Telemetry configures build tracing. An empty endpoint disables export.
type Telemetry struct {
	Endpoint string `yaml:"endpoint" env:"C3_OTLP_ENDPOINT"`
	Insecure bool   `yaml:"insecure" env:"C3_OTLP_INSECURE"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Host:          "http://localhost",
		Port:          3000,
		SourcePath:    "src",
		AddonScript:   "addon.ts",
		RuntimeScript: "runtime.ts",
		EditorScripts: []string{"editor.ts"},
		LangPath:      "src/lang",
		LibPath:       "src/libs",
		ExportPath:    "export",
		DistPath:      "dist",
		DocsPath:      "ACES.md",
		Languages:     []string{i18n.DefaultTag},
		Publish:       Publish{Region: "us-east-1", UseSSL: true},
	}
}

// Load reads the configuration for the project in root. Root is made
// absolute so that every derived path is.
func Load(root string) (*Config, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	cfg.Root = root

	b, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", FileName, err)
		}
	}

	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Root = root

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and canonicalizes the language tags.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", c.Port)
	}
	if c.SourcePath == "" || c.ExportPath == "" {
		return fmt.Errorf("sourcePath and exportPath must be set")
	}
	if c.AddonScript == "" || c.RuntimeScript == "" {
		return fmt.Errorf("addonScript and runtimeScript must be set")
	}
	tags, err := i18n.Canonicalize(c.Languages)
	if err != nil {
		return err
	}
	c.Languages = tags
	return nil
}

// Path resolves p against the project root.
func (c *Config) Path(p ...string) string {
	return filepath.Join(append([]string{c.Root}, p...)...)
}

// SourceFile resolves a file inside the source directory.
func (c *Config) SourceFile(name string) string { return c.Path(c.SourcePath, name) }
