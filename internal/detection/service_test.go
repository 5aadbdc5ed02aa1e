package detection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"shopaudit-backend/internal/models"
)

type fakeAnalyzer struct {
	annotation *Annotation
	err        error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, imageRef string) (*Annotation, error) {
	return f.annotation, f.err
}

func newTestService(a Analyzer) *Service {
	return NewService(a, nil, nil)
}

func TestDetectLogoMatch(t *testing.T) {
	svc := newTestService(&fakeAnalyzer{annotation: &Annotation{
		Logos: []models.ScoredLabel{
			{Description: "Lay's", Score: 0.9},
			{Description: "Lays Classic", Score: 0.8},
			{Description: "Coca-Cola", Score: 0.95},
		},
	}})

	result := svc.Detect(context.Background(), "https://cdn.example.com/shelf.jpg")

	assert.True(t, result.ProductDetected)
	assert.Equal(t, 2, result.ProductCount)
	assert.Equal(t, models.DetectionMethodLogo, result.Method)
	// Mean of 0.9 and 0.8.
	assert.Equal(t, 0.85, result.Confidence)
	assert.Empty(t, result.Error)
}

func TestDetectTextMatchCountsCategoryLabels(t *testing.T) {
	svc := newTestService(&fakeAnalyzer{annotation: &Annotation{
		Text: "LAYS Magic Masala Rs.20",
		Labels: []models.ScoredLabel{
			{Description: "Potato chips", Score: 0.92},
			{Description: "Snack", Score: 0.88},
			{Description: "Shelf", Score: 0.99},
		},
		Objects: []models.ScoredLabel{
			{Description: "Packaged goods", Score: 0.8},
		},
	}})

	result := svc.Detect(context.Background(), "img")

	assert.True(t, result.ProductDetected)
	assert.Equal(t, models.DetectionMethodText, result.Method)
	// Two category labels beat zero category objects.
	assert.Equal(t, 2, result.ProductCount)
	// Mean label score 0.9 beats the 0.7 floor.
	assert.Equal(t, 0.9, result.Confidence)
}

func TestDetectTextMatchAppliesConfidenceFloor(t *testing.T) {
	svc := newTestService(&fakeAnalyzer{annotation: &Annotation{
		Text: "lays",
	}})

	result := svc.Detect(context.Background(), "img")

	assert.True(t, result.ProductDetected)
	assert.Equal(t, 1, result.ProductCount, "text hit with no category matches still counts as one")
	assert.Equal(t, 0.7, result.Confidence)
	assert.Equal(t, models.DetectionMethodText, result.Method)
}

func TestDetectNothingFound(t *testing.T) {
	svc := newTestService(&fakeAnalyzer{annotation: &Annotation{
		Text:   "Fresh vegetables daily",
		Labels: []models.ScoredLabel{{Description: "Vegetable", Score: 0.97}},
	}})

	result := svc.Detect(context.Background(), "img")

	assert.False(t, result.ProductDetected)
	assert.Equal(t, 0, result.ProductCount)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, models.DetectionMethodNone, result.Method)
	assert.Empty(t, result.Error)
}

func TestDetectUpstreamFailureDegrades(t *testing.T) {
	svc := newTestService(&fakeAnalyzer{err: errors.New("vision API returned status code 503")})

	result := svc.Detect(context.Background(), "img")

	assert.False(t, result.ProductDetected)
	assert.Equal(t, 0, result.ProductCount)
	assert.Equal(t, models.DetectionMethodNone, result.Method)
	assert.Contains(t, result.Error, "503")
	assert.False(t, result.ProcessedAt.IsZero())
}

func TestDetectCustomKeywords(t *testing.T) {
	svc := NewService(&fakeAnalyzer{annotation: &Annotation{
		Logos: []models.ScoredLabel{{Description: "Acme Cola", Score: 0.91}},
	}}, []string{"acme cola"}, nil)

	result := svc.Detect(context.Background(), "img")

	assert.True(t, result.ProductDetected)
	assert.Equal(t, models.DetectionMethodLogo, result.Method)
	assert.Equal(t, 0.91, result.Confidence)
}

func TestSplitKeywords(t *testing.T) {
	assert.Nil(t, splitKeywords(""))
	assert.Equal(t, []string{"acme", "acme cola"}, splitKeywords(" Acme , acme cola ,"))
}
