package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shenikar/road_incident_triage/internal/models"
)

const systemPrompt = `You are an AI assistant specialized in analyzing road accident images for emergency response systems.
Analyze the provided image and extract the following information in JSON format:
{
  "accidentType": "vehicle_collision | pedestrian_hit | motorcycle_accident | truck_accident | multi_vehicle | hit_and_run | bus_accident | auto_rickshaw | bicycle_accident | other",
  "severity": "low | medium | high | critical",
  "title": "Brief title describing the accident (max 50 chars)",
  "description": "Detailed description of what you observe (2-3 sentences)",
  "vehiclesInvolved": number,
  "estimatedCasualties": number (0 if unclear),
  "recommendations": ["array of 2-3 immediate action recommendations"],
  "confidence": number between 0 and 1
}

Severity guidelines:
- low: Minor damage, no visible injuries
- medium: Moderate damage, possible minor injuries
- high: Significant damage, likely injuries
- critical: Severe damage, life-threatening situation

Only respond with valid JSON, no additional text.`

const defaultUserPrompt = "Analyze this accident image and provide the structured JSON response as specified."

var ErrEmptyResponse = errors.New("classifier returned no content")

// PerplexityClient - клиент chat completions API с поддержкой изображений
type PerplexityClient struct {
	url        string
	model      string
	apiKey     string
	httpClient *http.Client
}

func NewPerplexityClient(url, model, apiKey string, httpClient *http.Client) *PerplexityClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PerplexityClient{
		url:        url,
		model:      model,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// accidentAnalysis - формат ответа модели
type accidentAnalysis struct {
	AccidentType        string   `json:"accidentType"`
	Severity            string   `json:"severity"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	VehiclesInvolved    int      `json:"vehiclesInvolved"`
	EstimatedCasualties int      `json:"estimatedCasualties"`
	Recommendations     []string `json:"recommendations"`
	Confidence          float64  `json:"confidence"`
}

// Classify отправляет изображение в виде data URL и разбирает JSON из первого ответа
func (c *PerplexityClient) Classify(ctx context.Context, img Image, prompt string) (*models.ClassificationResult, error) {
	if prompt == "" {
		prompt = defaultUserPrompt
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(img.Data)),
				}},
			}},
		},
		MaxTokens:   1000,
		Temperature: 0.2,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("classifier error %d: %s", resp.StatusCode, string(b))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	if len(chat.Choices) == 0 || strings.TrimSpace(chat.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	var analysis accidentAnalysis
	if err := json.Unmarshal([]byte(stripCodeFence(chat.Choices[0].Message.Content)), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse classifier content: %w", err)
	}

	return &models.ClassificationResult{
		Category:         models.Category(analysis.AccidentType),
		Severity:         models.Severity(analysis.Severity),
		Confidence:       analysis.Confidence,
		Title:            analysis.Title,
		Description:      analysis.Description,
		VehicleCount:     analysis.VehiclesInvolved,
		CasualtyEstimate: analysis.EstimatedCasualties,
		Recommendations:  analysis.Recommendations,
	}, nil
}

// stripCodeFence убирает markdown-обертку ```json ... ```
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
