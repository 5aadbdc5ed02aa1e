package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"shopaudit-backend/internal/models"
)

// Annotation is the raw output of one image analysis: everything the
// recognition service saw, before any product matching.
type Annotation struct {
	Labels  []models.ScoredLabel
	Logos   []models.ScoredLabel
	Objects []models.ScoredLabel
	Text    string
}

// Analyzer is the external image-recognition collaborator. Network-bound
// and fallible; callers must treat errors as degradable.
type Analyzer interface {
	Analyze(ctx context.Context, imageRef string) (*Annotation, error)
}

// VisionClient calls the Google Cloud Vision images:annotate REST endpoint.
type VisionClient struct {
	apiKey string
	client *http.Client
}

// NewVisionClient builds a client from GOOGLE_CLOUD_VISION_API_KEY.
func NewVisionClient() (*VisionClient, error) {
	apiKey := os.Getenv("GOOGLE_CLOUD_VISION_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_VISION_API_KEY environment variable is required")
	}

	return &VisionClient{
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image struct {
		Source struct {
			ImageURI string `json:"imageUri"`
		} `json:"source"`
	} `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateResponse struct {
	Responses []struct {
		LabelAnnotations []struct {
			Description string  `json:"description"`
			Score       float64 `json:"score"`
		} `json:"labelAnnotations"`
		LogoAnnotations []struct {
			Description string  `json:"description"`
			Score       float64 `json:"score"`
		} `json:"logoAnnotations"`
		LocalizedObjectAnnotations []struct {
			Name  string  `json:"name"`
			Score float64 `json:"score"`
		} `json:"localizedObjectAnnotations"`
		TextAnnotations []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// Analyze runs logo, label, object and text detection on one image URL.
func (c *VisionClient) Analyze(ctx context.Context, imageRef string) (*Annotation, error) {
	var entry annotateEntry
	entry.Image.Source.ImageURI = imageRef
	entry.Features = []visionFeature{
		{Type: "OBJECT_LOCALIZATION", MaxResults: 10},
		{Type: "LABEL_DETECTION", MaxResults: 20},
		{Type: "TEXT_DETECTION", MaxResults: 50},
		{Type: "LOGO_DETECTION", MaxResults: 10},
	}
	reqBody := annotateRequest{Requests: []annotateEntry{entry}}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("https://vision.googleapis.com/v1/images:annotate?key=%s", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call vision API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision API returned status code %d", resp.StatusCode)
	}

	var result annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Responses) == 0 {
		return nil, fmt.Errorf("vision API returned no responses")
	}
	r := result.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("vision API error: %s", r.Error.Message)
	}

	annotation := &Annotation{}
	for _, l := range r.LabelAnnotations {
		annotation.Labels = append(annotation.Labels, models.ScoredLabel{Description: l.Description, Score: l.Score})
	}
	for _, l := range r.LogoAnnotations {
		annotation.Logos = append(annotation.Logos, models.ScoredLabel{Description: l.Description, Score: l.Score})
	}
	for _, o := range r.LocalizedObjectAnnotations {
		annotation.Objects = append(annotation.Objects, models.ScoredLabel{Description: o.Name, Score: o.Score})
	}
	// The first text annotation is the full OCR block; the rest are
	// per-word fragments.
	if len(r.TextAnnotations) > 0 {
		annotation.Text = r.TextAnnotations[0].Description
	}

	return annotation, nil
}
