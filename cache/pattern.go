package cache

import (
	"regexp"
	"strings"

	"github.com/saiset-co/b2b-portal/types"
)

type prefixPattern string

// Prefix matches keys equal to or starting with p.
func Prefix(p string) types.KeyPattern {
	return prefixPattern(p)
}

func (p prefixPattern) Match(key string) bool { return strings.HasPrefix(key, string(p)) }
func (p prefixPattern) LiteralPrefix() string { return string(p) }
func (p prefixPattern) String() string        { return string(p) }

type regexpPattern struct {
	re *regexp.Regexp
}

// Regexp matches keys against re.
func Regexp(re *regexp.Regexp) types.KeyPattern {
	return regexpPattern{re: re}
}

func (p regexpPattern) Match(key string) bool { return p.re.MatchString(key) }
func (p regexpPattern) String() string        { return p.re.String() }

func (p regexpPattern) LiteralPrefix() string {
	src := p.re.String()
	if !strings.HasPrefix(src, "^") {
		return ""
	}

	unanchored, err := regexp.Compile(src[1:])
	if err != nil {
		return ""
	}

	prefix, _ := unanchored.LiteralPrefix()
	return prefix
}

// ParsePattern builds a prefix pattern, or a regular expression when isRegexp is set.
func ParsePattern(expr string, isRegexp bool) (types.KeyPattern, error) {
	if !isRegexp {
		return Prefix(expr), nil
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, types.Errorf(types.ErrCachePatternInvalid, "%s: %v", expr, err)
	}

	return Regexp(re), nil
}
