package relocation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"

	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/metrics"
)

// Tool rewrites the namespaces of input into output according to mapping.
// It must either create output or return an error.
type Tool interface {
	Relocate(ctx context.Context, input, output string, mapping map[string]string) error
}

// ToolFunc adapts a function to Tool.
type ToolFunc func(ctx context.Context, input, output string, mapping map[string]string) error

func (f ToolFunc) Relocate(ctx context.Context, input, output string, mapping map[string]string) error {
	return f(ctx, input, output, mapping)
}

// Handler relocates downloaded artifacts with a fixed rule set, reusing cached
// output while the rules are unchanged.
type Handler struct {
	cache *CacheResolver
	tool  Tool
	rules []Rule
	group singleflight.Group
}

// NewHandler validates rules and returns a Handler writing into cacheDir.
func NewHandler(cacheDir string, tool Tool, rules []Rule) (*Handler, error) {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		normalized = append(normalized, NewRule(r.Pattern, r.Relocated))
	}
	if len(normalized) > 0 && tool == nil {
		return nil, errors.New("relocation rules configured without a tool")
	}
	return &Handler{cache: NewCacheResolver(cacheDir), tool: tool, rules: normalized}, nil
}

// Rules returns the normalised rule set.
func (h *Handler) Rules() []Rule {
	return append([]Rule(nil), h.rules...)
}

// Relocate returns the relocated copy of the artifact at path, producing it
// when the cached copy is missing or was made with different rules. With no
// rules the input path is returned unchanged.
func (h *Handler) Relocate(ctx context.Context, c coords.Coordinate, path string) (string, error) {
	if len(h.rules) == 0 {
		return path, nil
	}
	output := h.cache.OutputPath(c)
	shared := context.WithoutCancel(ctx)
	ch := h.group.DoChan(output, func() (interface{}, error) {
		return output, h.relocate(shared, c, path, output)
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("relocate %s: %w", c, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

func (h *Handler) relocate(ctx context.Context, c coords.Coordinate, input, output string) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("coordinate", c.String(), "path", output)

	stale, err := h.cache.Stale(c, h.rules)
	if err != nil {
		metrics.RelocationsTotal.WithLabelValues("failed").Inc()
		return err
	}
	if !stale {
		log.V(1).Info("reusing relocated artifact")
		metrics.RelocationsTotal.WithLabelValues("reused").Inc()
		return nil
	}

	if err := h.run(ctx, input, output); err != nil {
		metrics.RelocationsTotal.WithLabelValues("failed").Inc()
		log.Error(err, "relocation failed")
		return fmt.Errorf("relocate %s: %w", c, err)
	}
	if err := h.cache.Record(c, h.rules); err != nil {
		metrics.RelocationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("relocate %s: %w", c, err)
	}
	metrics.RelocationsTotal.WithLabelValues("relocated").Inc()
	log.Info("relocated artifact", "rules", len(h.rules))
	return nil
}

func (h *Handler) run(ctx context.Context, input, output string) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	if err := os.Remove(output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale output: %w", err)
	}
	if err := h.tool.Relocate(ctx, input, output, Mapping(h.rules)); err != nil {
		_ = os.Remove(output)
		return err
	}
	if info, err := os.Stat(output); err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrNoOutput, output)
	}
	return nil
}
