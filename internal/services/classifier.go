package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"greentera/internal/config"
	"greentera/internal/logging"
	"greentera/internal/metrics"
	"greentera/internal/models"

	"github.com/sony/gobreaker/v2"
)

// ScanResult is the classification of one waste photo.
type ScanResult struct {
	WasteType       models.WasteCategory `json:"wasteType"`
	Confidence      float64              `json:"confidence"`
	EstimatedWeight float64              `json:"estimatedWeight"`
	Description     string               `json:"description"`
	IsMock          bool                 `json:"isMock,omitempty"`
	IsFallback      bool                 `json:"isFallback,omitempty"`
}

func mockResult() *ScanResult {
	return &ScanResult{
		WasteType:       models.WastePlastic,
		Confidence:      85,
		EstimatedWeight: 0.5,
		Description:     "Mock result: Plastic detected (API key not configured)",
		IsMock:          true,
	}
}

func fallbackResult(reason error) *ScanResult {
	return &ScanResult{
		WasteType:       models.WasteOrganic,
		Confidence:      30,
		EstimatedWeight: 0.5,
		Description:     fmt.Sprintf("Error: %v. Defaulting to organic.", reason),
		IsFallback:      true,
	}
}

const classificationPrompt = `You are an expert waste classification AI. Analyse the actual visual content of this image.

Identify the MATERIAL of the primary (largest) object and determine:
1. The waste type, exactly one of: organic, plastic, metal, paper
2. Your confidence from 0 to 100, honest about uncertainty
3. The estimated weight in kg (0.1 to 10)
4. A brief description of what you see

Respond ONLY with this JSON (no other text):
{
  "wasteType": "plastic",
  "confidence": 85,
  "estimatedWeight": 0.5,
  "description": "A plastic water bottle"
}

ORGANIC: food scraps, fruit peels, leaves, egg shells, tea bags. Soft, natural colours, irregular shapes.
PLASTIC: bottles, bags, food containers, cups, straws, caps. Glossy, molded, often transparent or bright.
METAL: drink cans, food tins, foil, metal lids. Metallic sheen, rigid, pull tabs.
PAPER: newspaper, cardboard, magazines, office paper, paper cups. Matte fibrous texture, often printed.

A plastic bottle is PLASTIC. A metal can is METAL. A cardboard box is PAPER. Food waste is ORGANIC.
If truly unsure, give a low confidence score.`

// ClassifierService asks Gemini to classify waste photos. It never fails a
// scan because of the upstream model: without an API key it answers with a
// mock result and on any upstream failure with a low-confidence fallback.
type ClassifierService struct {
	cfg    config.GeminiConfig
	images *ImageService
	client *http.Client
	cb     *gobreaker.CircuitBreaker[string]
}

func NewClassifierService(cfg config.GeminiConfig, images *ImageService) *ClassifierService {
	name := "gemini"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("Opening Gemini circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", from.String()).Str("to", to.String()).Msg("Gemini circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &ClassifierService{
		cfg:    cfg,
		images: images,
		client: &http.Client{Timeout: cfg.Timeout},
		cb:     cb,
	}
}

func (s *ClassifierService) Enabled() bool {
	return s.cfg.APIKey != ""
}

// Classify returns the classification of a base64 (or data URL) image.
// Only input errors (missing or oversized image) are returned as errors.
func (s *ClassifierService) Classify(ctx context.Context, payload string) (*ScanResult, error) {
	raw, err := s.images.Decode(payload)
	if err != nil {
		return nil, err
	}
	log := logging.Ctx(ctx)

	if !s.Enabled() {
		log.Warn().Msg("GEMINI_API_KEY not configured, using mock scan result")
		metrics.ClassifierRequests.WithLabelValues("mock").Inc()
		return mockResult(), nil
	}

	jpeg, err := s.images.ToJPEG(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Scan image could not be prepared")
		metrics.ClassifierRequests.WithLabelValues("fallback").Inc()
		return fallbackResult(err), nil
	}

	text, err := s.cb.Execute(func() (string, error) {
		return s.generate(ctx, jpeg)
	})
	if err != nil {
		outcome := "fallback"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "open"
		}
		log.Error().Err(err).Str("outcome", outcome).Msg("Gemini classification failed")
		metrics.ClassifierRequests.WithLabelValues(outcome).Inc()
		return fallbackResult(err), nil
	}

	result, err := parseScanResponse(text)
	if err != nil {
		log.Error().Err(err).Str("response", text).Msg("Gemini response could not be parsed")
		metrics.ClassifierRequests.WithLabelValues("fallback").Inc()
		return fallbackResult(err), nil
	}

	metrics.ClassifierRequests.WithLabelValues("ok").Inc()
	log.Info().
		Str("waste_type", string(result.WasteType)).
		Float64("confidence", result.Confidence).
		Msg("Waste image classified")
	return result, nil
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// generate calls models/{model}:generateContent and returns the text of
// the first candidate.
func (s *ClassifierService) generate(ctx context.Context, jpeg []byte) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: classificationPrompt},
				{InlineData: &geminiInlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(jpeg),
				}},
			},
		}},
		GenerationConfig: map[string]any{"temperature": 0.2},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	var out geminiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode gemini response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("gemini status %d", resp.StatusCode)
	}
	for _, c := range out.Candidates {
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", errors.New("gemini returned no text")
}

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	jsonObject  = regexp.MustCompile(`(?s)\{.*\}`)
)

// parseScanResponse pulls the JSON object out of the model text and
// normalises its fields.
func parseScanResponse(text string) (*ScanResult, error) {
	candidate := text
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		candidate = m[1]
	}
	obj := jsonObject.FindString(candidate)
	if obj == "" {
		return nil, errors.New("invalid response format - no JSON found")
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, fmt.Errorf("invalid response JSON: %w", err)
	}

	wasteType := models.WasteOrganic
	if raw, ok := parsed["wasteType"].(string); ok {
		if c := models.WasteCategory(strings.ToUpper(strings.TrimSpace(raw))); c.Valid() {
			wasteType = c
		}
	}

	description, _ := parsed["description"].(string)
	if description == "" {
		description = "Waste detected"
	}

	return &ScanResult{
		WasteType:       wasteType,
		Confidence:      clamp(numberOr(parsed["confidence"], 50), 0, 100),
		EstimatedWeight: clamp(numberOr(parsed["estimatedWeight"], 0.5), 0.1, 10),
		Description:     description,
	}, nil
}

// numberOr reads a JSON number or numeric string; zero, missing and
// unparsable values yield def.
func numberOr(v any, def float64) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(x, "%")), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if f == 0 || math.IsNaN(f) {
		return def
	}
	return f
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
