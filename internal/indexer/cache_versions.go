package indexer

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/snipe-tools/snipe/internal/config"
)

// bundledParserVersion identifies the tree-sitter C grammar shipped with
// the go-tree-sitter module. Bump when upgrading the dependency.
const bundledParserVersion = "tree-sitter-c/v0.0.0-20240827094217"

func cacheEnabled(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}
	if cfg.Analysis.Cache.Enabled == nil {
		return false
	}
	return *cfg.Analysis.Cache.Enabled
}

func resolveCacheDir(rootPath string, cfg *config.Config) string {
	baseDir := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(rootPath)
	}
	cacheDir := cfg.Analysis.Cache.Dir
	if cacheDir == "" {
		cacheDir = ".snipe_cache"
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(baseDir, cacheDir)
	}
	return cacheDir
}

// computeCacheVersions derives cache invalidation keys. The extractor
// version is the hash of the extractor source so cached facts are
// discarded whenever extraction logic changes.
func computeCacheVersions() cacheVersions {
	extractorVersion := ""
	if repoRoot := findRepoRootForCache(); repoRoot != "" {
		extractorVersion = hashFileIfExists(filepath.Join(repoRoot, "internal", "extractor", "extractor.go"))
	}
	if extractorVersion == "" {
		extractorVersion = "unknown"
	}
	return cacheVersions{parser: bundledParserVersion, extractor: extractorVersion}
}

func findRepoRootForCache() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func hashFileIfExists(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	h, err := hashFile(path)
	if err != nil {
		return ""
	}
	return h
}
