package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// Mask replaces every masked preview value.
const Mask = "***"

type piiMiddleware struct {
	next     ports.RunStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks the preview values of
// dataset columns whose names match any of the patterns.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.RunStore) ports.RunStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, runID string, state *domain.State) error {
	// The scheduler may still hold state, so mask a copy.
	cloned := *state
	cloned.Dataset = m.mask(state.Dataset)
	cloned.TestDataset = m.mask(state.TestDataset)
	return m.next.Save(ctx, runID, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, runID string) (*domain.State, error) {
	return m.next.Load(ctx, runID)
}

func (m *piiMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) mask(ds *domain.Dataset) *domain.Dataset {
	if ds == nil {
		return nil
	}
	var masked []int
	for i, col := range ds.Columns {
		for _, p := range m.patterns {
			if p.MatchString(col) {
				masked = append(masked, i)
				break
			}
		}
	}
	if len(masked) == 0 {
		return ds
	}

	out := *ds
	out.Head = make([][]string, len(ds.Head))
	for r, row := range ds.Head {
		cp := append([]string(nil), row...)
		for _, i := range masked {
			if i < len(cp) {
				cp[i] = Mask
			}
		}
		out.Head[r] = cp
	}
	return &out
}
