package rule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/convodesk/autoreply/pkg/cache"
)

// patternCache is the LRU cache for compiled keyword patterns. Rule sets are
// small and stable, so a modest cap keeps recompilation off the hot path.
var patternCache cache.Cache[*regexp.Regexp]

func init() {
	var err error
	patternCache, err = cache.NewLRU[*regexp.Regexp](256)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize pattern cache: %v", err))
	}
}

// compilePattern returns a cached case-insensitive compiled pattern, or
// compiles and caches a new one.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, found := patternCache.Get(pattern); found {
		return re, nil
	}

	if err := validatePatternComplexity(pattern); err != nil {
		return nil, err
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}

	_, _ = patternCache.Set(pattern, re)
	return re, nil
}

// validatePatternComplexity rejects patterns likely to cause excessive
// backtracking. A heuristic check, not exhaustive.
func validatePatternComplexity(pattern string) error {
	if len(pattern) > 500 {
		return fmt.Errorf("regex pattern too long (max 500 chars): %d chars", len(pattern))
	}

	dangerousFragments := []string{
		`(\w+)*\w`,
		`(\w*)+`,
		`(a+)+`,
		`([a-zA-Z]+)*`,
		`(\d+)*\d`,
		`(.*)*`,
		`(.+)+`,
		`(\s+)*\s`,
	}
	for _, fragment := range dangerousFragments {
		if strings.Contains(pattern, fragment) {
			return fmt.Errorf("regex pattern contains nested quantifiers that may cause exponential backtracking")
		}
	}

	if strings.Count(pattern, "(") > 20 {
		return fmt.Errorf("regex pattern has too many groups (max 20)")
	}

	nestLevel, maxNest := 0, 0
	for _, ch := range pattern {
		switch ch {
		case '(':
			nestLevel++
			if nestLevel > maxNest {
				maxNest = nestLevel
			}
		case ')':
			nestLevel--
		}
	}
	if maxNest > 5 {
		return fmt.Errorf("regex pattern has excessive nesting depth (max 5 levels)")
	}

	return nil
}

// clearPatternCache removes all cached patterns. Test helper.
func clearPatternCache() {
	_ = patternCache.Clear()
}

// patternCacheSize returns the current number of cached patterns. Test helper.
func patternCacheSize() int {
	return patternCache.Size()
}
