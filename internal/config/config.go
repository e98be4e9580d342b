// Package config resolves the two pieces of on-disk configuration the
// system needs to run: where to find PDFs to ingest, and where to keep the
// SQLite citation store. The Gemini API key is resolved straight from the
// environment at the point of use, the way internal/embedder and
// internal/llm already do; the GROBID service URL is the fixed
// ingest.DefaultGrobidURL.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// fileName is the TOML config file's name under xdg.ConfigHome.
const fileName = "bib/config.toml"

// Configuration is the resolved, ready-to-use configuration for one run.
type Configuration struct {
	// PDFDir is the directory scanned by "sync" and written to by "add".
	PDFDir string
	// DataDir is the directory holding the SQLite citation store
	// (store.Open appends the fixed "bib.db" file name itself).
	DataDir string
}

var global *Configuration

// fileConfig is the shape of the on-disk TOML file: a single key.
type fileConfig struct {
	PDFDir string `toml:"pdf_dir"`
}

// Load reads the TOML config file at the platform-conventional config
// path, expands and canonicalizes pdf_dir (creating it if missing), and
// resolves the SQLite store path under the platform-conventional data
// directory. It also loads a ".env" file from the working directory, if
// present, so GEMINI_API_KEY and friends can be set there instead of the
// shell environment.
func Load() (*Configuration, error) {
	if global != nil {
		return global, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
		}
	}

	configPath, err := xdg.ConfigFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	var fc fileConfig
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, &fc); err != nil {
			return nil, fmt.Errorf("parsing config file %q: %w", configPath, err)
		}
	}

	if fc.PDFDir == "" {
		return nil, fmt.Errorf("pdf_dir is not set in %q; add a line like pdf_dir = \"~/papers\"", configPath)
	}

	pdfDir, err := resolveDir(fc.PDFDir)
	if err != nil {
		return nil, fmt.Errorf("resolving pdf_dir: %w", err)
	}

	dataDir := filepath.Join(xdg.DataHome, "bib")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %q: %w", dataDir, err)
	}

	cfg := &Configuration{PDFDir: pdfDir, DataDir: dataDir}
	global = cfg
	return cfg, nil
}

// Get returns the already-loaded configuration, loading it first if
// necessary. It panics if loading fails, mirroring the teacher's singleton
// accessor; callers that need a recoverable error should call Load
// directly instead.
func Get() *Configuration {
	if global != nil {
		return global
	}
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// resolveDir expands a leading "~/" to the user's home directory, expands
// environment variables, converts the result to an absolute path, and
// creates the directory if it does not already exist.
func resolveDir(path string) (string, error) {
	path = expandTilde(path)
	path = os.ExpandEnv(path)

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %q: %w", abs, err)
	}

	return abs, nil
}

func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
