package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
)

// MaskedValue replaces the value of every masked key.
const MaskedValue = "***"

type maskingMiddleware struct {
	ports.ExecutionRepository
	patterns []*regexp.Regexp
}

// NewMaskingMiddleware creates a middleware that masks values of parameter,
// context and result keys matching any of the patterns before they are persisted.
func NewMaskingMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.ExecutionRepository) ports.ExecutionRepository {
		return keepAppender(&maskingMiddleware{ExecutionRepository: next, patterns: patterns}, next)
	}, nil
}

func (m *maskingMiddleware) Upsert(ctx context.Context, exec *domain.Execution, publish bool) (*domain.Execution, error) {
	if exec == nil {
		return m.ExecutionRepository.Upsert(ctx, exec, publish)
	}
	// Clone so the caller's record keeps its real values.
	cloned := exec.Clone()
	maskMap(cloned.Parameters, m.patterns)
	maskMap(cloned.Context, m.patterns)
	maskMap(cloned.Result, m.patterns)

	return m.ExecutionRepository.Upsert(ctx, cloned, publish)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matchesAny(k, patterns) {
			m[k] = MaskedValue
			continue
		}
		maskValue(v, patterns)
	}
}

func maskValue(v any, patterns []*regexp.Regexp) {
	switch t := v.(type) {
	case map[string]any:
		maskMap(t, patterns)
	case []any:
		for _, item := range t {
			maskValue(item, patterns)
		}
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
