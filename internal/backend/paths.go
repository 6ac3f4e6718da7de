package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// resolvePatterns 将路径模式解析为工作目录下实际存在的绝对路径。
// 支持 glob（含跨目录的 "**"）、前导 "~" 以及 "!pattern" 排除；返回的 exclude 用于遍历目录时跳过子项。
func resolvePatterns(workspace string, patterns []string) (includes []string, exclude func(string) bool, err error) {
	var includePatterns, excludePatterns []string
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "!") {
			expanded, err := absPattern(workspace, strings.TrimPrefix(p, "!"))
			if err != nil {
				return nil, nil, err
			}
			excludePatterns = append(excludePatterns, expanded)
			continue
		}
		expanded, err := absPattern(workspace, p)
		if err != nil {
			return nil, nil, err
		}
		includePatterns = append(includePatterns, expanded)
	}

	exclude = func(abs string) bool {
		for _, pattern := range excludePatterns {
			if ok, _ := doublestar.PathMatch(pattern, abs); ok {
				return true
			}
			if abs == pattern || strings.HasPrefix(abs, pattern+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}

	seen := make(map[string]struct{})
	for _, pattern := range includePatterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid path pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if exclude(m) {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			includes = append(includes, m)
		}
	}
	sort.Strings(includes)
	return includes, exclude, nil
}

// absPattern 展开 "~" 并将相对模式挂到 workspace 下。
func absPattern(workspace, pattern string) (string, error) {
	if pattern == "~" || strings.HasPrefix(pattern, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand home directory: %w", err)
		}
		pattern = filepath.Join(home, strings.TrimPrefix(pattern, "~"))
	}
	pattern = filepath.FromSlash(pattern)
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(workspace, pattern)
	}
	return filepath.Clean(pattern), nil
}
