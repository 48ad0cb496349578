package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"

	"newsintel/internal/domain"
	"newsintel/internal/ports"
)

var versionExpr = regexp.MustCompile(`(\d+)\.(\d+)`)

// ModelSelector queries a provider's catalog and picks the best generation
// model under the version-preference policy. It never blocks the pipeline:
// any failure resolves to the configured default model.
type ModelSelector struct {
	defaultModel string
	logger       *slog.Logger
}

// NewModelSelector configures the known-good default used on any failure.
func NewModelSelector(defaultModel string, logger *slog.Logger) *ModelSelector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelSelector{defaultModel: defaultModel, logger: logger}
}

// Select returns the chosen model identifier for the provider. Deterministic
// for identical catalogs: highest numeric version wins, ties broken by the
// provider's declared list order.
func (s *ModelSelector) Select(ctx context.Context, provider ports.ModelProvider, apiKey string) domain.ModelSelection {
	selection := domain.ModelSelection{Provider: provider.Name(), ModelID: s.defaultModel}

	models, err := provider.ListModels(ctx, apiKey)
	if err != nil {
		s.logger.Warn("model listing failed, using default", "provider", provider.Name(), "model", s.defaultModel, "error", err)
		return selection
	}

	best := ""
	bestVersion := -1
	for _, m := range models {
		if !m.SupportsGeneration || m.Heavyweight {
			continue
		}
		if v := extractVersion(m.ID); v > bestVersion {
			best = m.ID
			bestVersion = v
		}
	}

	if best == "" {
		s.logger.Warn("no eligible models in catalog, using default", "provider", provider.Name(), "model", s.defaultModel)
		return selection
	}

	s.logger.Info("model selected", "provider", provider.Name(), "model", best)
	selection.ModelID = best
	return selection
}

// extractVersion pulls the first major.minor pair out of a model identifier
// and scales it for integer comparison ("2.5" -> 250). Unversioned IDs rank
// lowest but stay eligible.
func extractVersion(modelID string) int {
	match := versionExpr.FindStringSubmatch(modelID)
	if match == nil {
		return 0
	}

	major, _ := strconv.Atoi(match[1])
	minor, _ := strconv.Atoi(match[2])
	if minor > 99 {
		minor = 99
	}
	return major*100 + minor
}
