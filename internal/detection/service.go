package detection

import (
	"context"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"shopaudit-backend/internal/models"
)

// textDetectionConfidenceFloor is the minimum confidence reported when the
// product was only confirmed via OCR text (OCR itself carries no score).
const textDetectionConfidenceFloor = 0.7

// defaultProductKeywords match the target brand in logos and OCR text.
var defaultProductKeywords = []string{
	"lays", "lay's", "lays classic", "lays masala", "lays magic masala",
	"lays cream onion", "lays cheese herbs", "lays tomato tango",
	"lays chip", "lays chips", "lays potato chips",
}

// defaultCategoryKeywords match generic product-category labels/objects
// used to estimate a count when only text confirmed the product.
var defaultCategoryKeywords = []string{
	"chip", "chips", "potato chip", "potato chips",
	"crisp", "crisps", "snack", "snacks", "bag", "packet",
}

// Service normalizes raw image-recognition output into the stored
// detection record. It never returns an error: an upstream failure
// degrades to the zeroed "none" result with the error message attached.
type Service struct {
	analyzer         Analyzer
	productKeywords  []string
	categoryKeywords []string
}

// NewService wires the analyzer with keyword lists. Empty slices fall back
// to the defaults.
func NewService(analyzer Analyzer, productKeywords, categoryKeywords []string) *Service {
	if len(productKeywords) == 0 {
		productKeywords = defaultProductKeywords
	}
	if len(categoryKeywords) == 0 {
		categoryKeywords = defaultCategoryKeywords
	}
	return &Service{
		analyzer:         analyzer,
		productKeywords:  productKeywords,
		categoryKeywords: categoryKeywords,
	}
}

// NewServiceFromEnv reads PRODUCT_KEYWORDS / PRODUCT_CATEGORY_KEYWORDS
// (comma-separated) so deployments can retarget the detector without a
// rebuild.
func NewServiceFromEnv(analyzer Analyzer) *Service {
	return NewService(analyzer,
		splitKeywords(os.Getenv("PRODUCT_KEYWORDS")),
		splitKeywords(os.Getenv("PRODUCT_CATEGORY_KEYWORDS")))
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, strings.ToLower(k))
		}
	}
	return out
}

// Detect analyzes one shelf image and derives the product verdict:
// matching logos win (count = logo matches, confidence = mean score);
// otherwise a keyword hit in the OCR text counts as at least one product,
// sized by how many category objects/labels were seen.
func (s *Service) Detect(ctx context.Context, imageRef string) models.DetectionResult {
	processedAt := time.Now()

	if s.analyzer == nil {
		return models.DetectionResult{
			Method:      models.DetectionMethodNone,
			ProcessedAt: processedAt,
			Error:       "image analysis not configured",
		}
	}

	annotation, err := s.analyzer.Analyze(ctx, imageRef)
	if err != nil {
		log.Printf("⚠️  Image analysis failed for %s: %v (storing empty detection)", imageRef, err)
		return models.DetectionResult{
			Method:      models.DetectionMethodNone,
			ProcessedAt: processedAt,
			Error:       err.Error(),
		}
	}

	logoMatches := matchLabels(annotation.Logos, s.productKeywords)
	textFound := containsAny(annotation.Text, s.productKeywords)

	result := models.DetectionResult{
		Method:          models.DetectionMethodNone,
		LogoMatches:     logoMatches,
		DetectedObjects: truncateLabels(annotation.Objects, 10),
		DetectedLabels:  truncateLabels(annotation.Labels, 10),
		ExtractedText:   truncateText(annotation.Text, 500),
		ProcessedAt:     processedAt,
	}

	switch {
	case len(logoMatches) > 0:
		result.ProductDetected = true
		result.ProductCount = len(logoMatches)
		result.Confidence = round2(meanScore(logoMatches))
		result.Method = models.DetectionMethodLogo

	case textFound:
		categoryObjects := matchLabels(annotation.Objects, s.categoryKeywords)
		categoryLabels := matchLabels(annotation.Labels, s.categoryKeywords)

		count := len(categoryObjects)
		if len(categoryLabels) > count {
			count = len(categoryLabels)
		}
		if count < 1 {
			count = 1
		}

		confidence := meanScore(categoryObjects)
		if c := meanScore(categoryLabels); c > confidence {
			confidence = c
		}
		if confidence < textDetectionConfidenceFloor {
			confidence = textDetectionConfidenceFloor
		}

		result.ProductDetected = true
		result.ProductCount = count
		result.Confidence = round2(confidence)
		result.Method = models.DetectionMethodText
	}

	return result
}

func matchLabels(labels []models.ScoredLabel, keywords []string) []models.ScoredLabel {
	var matched []models.ScoredLabel
	for _, l := range labels {
		lower := strings.ToLower(l.Description)
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				matched = append(matched, l)
				break
			}
		}
	}
	return matched
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func meanScore(labels []models.ScoredLabel) float64 {
	if len(labels) == 0 {
		return 0
	}
	var sum float64
	for _, l := range labels {
		sum += l.Score
	}
	return sum / float64(len(labels))
}

func truncateLabels(labels []models.ScoredLabel, max int) []models.ScoredLabel {
	if len(labels) > max {
		return labels[:max]
	}
	return labels
}

func truncateText(text string, max int) string {
	if len(text) > max {
		return text[:max]
	}
	return text
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
