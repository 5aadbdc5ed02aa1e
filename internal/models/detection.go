package models

import "time"

// DetectionMethod says which Vision signal produced the verdict.
type DetectionMethod string

const (
	DetectionMethodLogo   DetectionMethod = "logo"
	DetectionMethodText   DetectionMethod = "text"
	DetectionMethodObject DetectionMethod = "object"
	DetectionMethodNone   DetectionMethod = "none"
)

// ScoredLabel is one recognized logo/label/object with its confidence.
type ScoredLabel struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// DetectionResult is the normalized outcome of shelf-image analysis,
// produced once per visit attempt at evidence submission. A failed
// upstream call yields the zeroed "none" result with Error set; it never
// blocks the submission.
type DetectionResult struct {
	ProductDetected bool            `json:"product_detected"`
	ProductCount    int             `json:"product_count"`
	Confidence      float64         `json:"confidence"`
	Method          DetectionMethod `json:"detection_method"`
	LogoMatches     []ScoredLabel   `json:"logo_matches,omitempty"`
	DetectedObjects []ScoredLabel   `json:"detected_objects,omitempty"`
	DetectedLabels  []ScoredLabel   `json:"detected_labels,omitempty"`
	ExtractedText   string          `json:"extracted_text,omitempty"`
	ProcessedAt     time.Time       `json:"processed_at"`
	Error           string          `json:"error,omitempty"`
}
