// Package category suggests a budgeting-backend category for a statement
// based on its merchant-category code.
package category

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tverdokhlib/bankbridge/internal/fetcher"
	"github.com/tverdokhlib/bankbridge/internal/mcc"
	"github.com/tverdokhlib/bankbridge/internal/model"
)

// Overrides is the user's read-only mapping from merchant-category codes and
// groups to backend category names. A direct code override always wins over
// its group override.
type Overrides struct {
	ByCode  map[int]string
	ByGroup map[mcc.Group]string
}

// Engine resolves MCC codes to backend category ids.
type Engine struct {
	categories *fetcher.Fetcher[[]model.Category]
	overrides  Overrides
}

// NewEngine creates an engine over the given overrides and the periodically
// refreshed backend category list.
func NewEngine(overrides Overrides, categories *fetcher.Fetcher[[]model.Category]) *Engine {
	return &Engine{
		overrides:  overrides,
		categories: categories,
	}
}

// NameByMCC resolves a merchant-category code to a category name: direct code
// override first, then the override for the code's semantic group. Unknown
// codes log a warning and yield no suggestion; absence is a normal outcome.
func (e *Engine) NameByMCC(code int) (string, bool) {
	if name, ok := e.overrides.ByCode[code]; ok {
		return name, true
	}

	group, known := mcc.Lookup(code)
	if !known {
		slog.Warn("Unknown merchant-category code", "mcc", code)
		return "", false
	}
	if name, ok := e.overrides.ByGroup[group]; ok {
		return name, true
	}
	return "", false
}

// IDByMCC composes NameByMCC with a name-to-id lookup against the fetched
// category list. An empty id means no suggestion. The error is non-nil only
// when the category list has never been obtainable.
func (e *Engine) IDByMCC(ctx context.Context, code int) (string, error) {
	name, ok := e.NameByMCC(code)
	if !ok {
		return "", nil
	}

	categories, err := e.categories.GetData(ctx)
	if err != nil {
		return "", err
	}

	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c.ID, nil
		}
	}

	slog.Debug("Override names a category the backend does not have", "category", name, "mcc", code)
	return "", nil
}
