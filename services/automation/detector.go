package automation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/utils"
)

const DefaultMinConfidence = 0.6

// ElementTarget describes the element the detector is looking for.
type ElementTarget struct {
	Type string
	// Role is the expected ARIA role or tag role of the element.
	Role string
	// TextHints are labels the element or its accessible name may carry.
	TextHints []string
	// Region restricts the scan to a page area: "left", "top" or "" for
	// anywhere.
	Region string
}

// ElementDetector scans visible interactive elements and scores candidates
// against a target description. A candidate is accepted only when its
// confidence reaches the configured threshold.
type ElementDetector struct {
	minConfidence float64
}

func NewElementDetector(minConfidence float64) *ElementDetector {
	if minConfidence <= 0 || minConfidence > 1 {
		minConfidence = DefaultMinConfidence
	}
	return &ElementDetector{minConfidence: minConfidence}
}

// Detect returns the best-scoring selector for the target, with its
// confidence. Fails when no candidate reaches the threshold.
func (d *ElementDetector) Detect(ctx context.Context, browser interfaces.Browser, target ElementTarget) (string, float64, error) {
	elements, err := browser.VisibleElements(ctx)
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to scan page elements")
	}

	var bestSelector string
	var bestScore float64
	for _, element := range elements {
		score := d.score(element, target)
		if score > bestScore {
			bestScore = score
			bestSelector = element.Selector
		}
	}

	if bestScore < d.minConfidence {
		return "", bestScore, errors.Errorf("no element matched %q with confidence >= %.2f (best %.2f)",
			target.Type, d.minConfidence, bestScore)
	}
	return bestSelector, bestScore, nil
}

// score combines role match, text hint match and page position into a
// confidence value in [0,1].
func (d *ElementDetector) score(element interfaces.BrowserElement, target ElementTarget) float64 {
	if !element.Visible || element.Selector == "" {
		return 0
	}

	var score float64

	if target.Role != "" && element.Role == target.Role {
		score += 0.4
	}

	for _, hint := range target.TextHints {
		if hint != "" && utils.ContainsFold(element.Text, hint) {
			score += 0.4
			break
		}
	}

	switch target.Region {
	case "left":
		if element.X < 320 {
			score += 0.2
		}
	case "top":
		if element.Y < 200 {
			score += 0.2
		}
	default:
		score += 0.2
	}

	if score > 1 {
		score = 1
	}
	return score
}
