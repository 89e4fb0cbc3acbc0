package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvedGroup contains the expanded file list for a component group
type ResolvedGroup struct {
	Name         string
	Files        []string
	IsThirdParty bool
}

// ResolveGroups expands all glob patterns and returns resolved file lists
func (c *Config) ResolveGroups(rootPath string) ([]ResolvedGroup, error) {
	var result []ResolvedGroup

	for groupName, groupCfg := range c.Groups {
		resolved := ResolvedGroup{
			Name:         groupName,
			IsThirdParty: groupCfg.IsThirdParty,
		}

		// Expand all file patterns
		fileSet := make(map[string]bool)
		for _, pattern := range groupCfg.Files {
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(rootPath, pattern)
			}

			matches, err := expandGlob(pattern)
			if err != nil {
				// Silently skip invalid patterns
				continue
			}

			for _, match := range matches {
				// Only include C sources and headers
				ext := strings.ToLower(filepath.Ext(match))
				if ext == ".c" || ext == ".h" {
					fileSet[match] = true
				}
			}
		}

		// Remove excluded files
		for _, pattern := range groupCfg.Exclude {
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(rootPath, pattern)
			}

			matches, err := expandGlob(pattern)
			if err != nil {
				continue
			}

			for _, match := range matches {
				delete(fileSet, match)
			}
		}

		for f := range fileSet {
			resolved.Files = append(resolved.Files, f)
		}

		result = append(result, resolved)
	}

	return result, nil
}

// expandGlob expands a glob pattern, handling ** for recursive matching
func expandGlob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return expandDoubleStarGlob(pattern)
	}

	return filepath.Glob(pattern)
}

// expandDoubleStarGlob handles ** patterns by walking the directory tree
func expandDoubleStarGlob(pattern string) ([]string, error) {
	var results []string

	parts := strings.SplitN(pattern, "**", 2)
	if len(parts) != 2 {
		return filepath.Glob(pattern)
	}

	baseDir := filepath.Clean(parts[0])
	if baseDir == "" {
		baseDir = "."
	}
	suffix := parts[1]
	if strings.HasPrefix(suffix, string(filepath.Separator)) {
		suffix = suffix[1:]
	}

	err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}

		if info.IsDir() {
			return nil
		}

		if suffix == "" {
			results = append(results, path)
			return nil
		}

		relPath, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}

		if matchSuffix(relPath, suffix) {
			results = append(results, path)
		}

		return nil
	})

	return results, err
}

// matchSuffix checks if a path matches a suffix pattern (after **)
func matchSuffix(path, pattern string) bool {
	pattern = strings.TrimPrefix(pattern, string(filepath.Separator))

	// If pattern has no directory component, match against filename
	if !strings.Contains(pattern, string(filepath.Separator)) {
		matched, _ := filepath.Match(pattern, filepath.Base(path))
		return matched
	}

	matched, _ := filepath.Match(pattern, path)
	if matched {
		return true
	}

	// Also try matching just the suffix
	if len(path) > len(pattern) {
		suffix := path[len(path)-len(pattern):]
		matched, _ = filepath.Match(pattern, suffix)
		return matched
	}

	return false
}

// GetAllFiles returns all C files from all groups (flattened)
func (c *Config) GetAllFiles(rootPath string) ([]string, error) {
	groups, err := c.ResolveGroups(rootPath)
	if err != nil {
		return nil, err
	}

	fileSet := make(map[string]bool)
	for _, group := range groups {
		for _, f := range group.Files {
			fileSet[f] = true
		}
	}

	var result []string
	for f := range fileSet {
		result = append(result, f)
	}

	return result, nil
}

// FileGroupInfo contains group information for a specific file
type FileGroupInfo struct {
	GroupName    string
	IsThirdParty bool
}

// GetFileGroup returns the group information for a file
func (c *Config) GetFileGroup(filePath string, rootPath string) FileGroupInfo {
	groups, err := c.ResolveGroups(rootPath)
	if err != nil {
		return FileGroupInfo{GroupName: "src", IsThirdParty: false}
	}

	absPath, _ := filepath.Abs(filePath)

	for _, group := range groups {
		for _, f := range group.Files {
			absF, _ := filepath.Abs(f)
			if absPath == absF {
				return FileGroupInfo{
					GroupName:    group.Name,
					IsThirdParty: group.IsThirdParty,
				}
			}
		}
	}

	return FileGroupInfo{GroupName: "src", IsThirdParty: false}
}
