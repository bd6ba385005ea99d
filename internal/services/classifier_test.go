package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"greentera/internal/apperror"
	"greentera/internal/config"
	"greentera/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngPayload(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 30, G: uint8(x % 255), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func geminiServer(t *testing.T, status int, text string) (*httptest.Server, *geminiRequest) {
	t.Helper()
	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"model overloaded"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func newClassifier(baseURL string) *ClassifierService {
	cfg := config.GeminiConfig{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}
	return NewClassifierService(cfg, NewImageService(1<<20, 64))
}

func TestClassifyWithoutKeyReturnsMock(t *testing.T) {
	svc := NewClassifierService(config.GeminiConfig{}, NewImageService(1<<20, 64))
	assert.False(t, svc.Enabled())

	res, err := svc.Classify(context.Background(), pngPayload(t, 4, 4))
	require.NoError(t, err)
	assert.True(t, res.IsMock)
	assert.Equal(t, models.WastePlastic, res.WasteType)
	assert.Equal(t, 85.0, res.Confidence)
	assert.Equal(t, 0.5, res.EstimatedWeight)
}

func TestClassifyParsesFencedJSON(t *testing.T) {
	srv, captured := geminiServer(t, http.StatusOK,
		"Here you go:\n```json\n{\"wasteType\": \"metal\", \"confidence\": 92, \"estimatedWeight\": 0.3, \"description\": \"A soda can\"}\n```")
	svc := newClassifier(srv.URL)

	res, err := svc.Classify(context.Background(), pngPayload(t, 200, 100))
	require.NoError(t, err)
	assert.Equal(t, &ScanResult{
		WasteType:       models.WasteMetal,
		Confidence:      92,
		EstimatedWeight: 0.3,
		Description:     "A soda can",
	}, res)

	require.Len(t, captured.Contents, 1)
	parts := captured.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "waste classification")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MimeType)

	jpeg, err := base64.StdEncoding.DecodeString(parts[1].InlineData.Data)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(jpeg))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.LessOrEqual(t, cfg.Width, 64)
	assert.LessOrEqual(t, cfg.Height, 64)
}

func TestClassifyUpstreamFailureFallsBack(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusInternalServerError, "")
	svc := newClassifier(srv.URL)

	res, err := svc.Classify(context.Background(), pngPayload(t, 8, 8))
	require.NoError(t, err)
	assert.True(t, res.IsFallback)
	assert.Equal(t, models.WasteOrganic, res.WasteType)
	assert.Equal(t, 30.0, res.Confidence)
	assert.Contains(t, res.Description, "model overloaded")
}

func TestClassifyUnparsableResponseFallsBack(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusOK, "I cannot tell what this is.")
	svc := newClassifier(srv.URL)

	res, err := svc.Classify(context.Background(), pngPayload(t, 8, 8))
	require.NoError(t, err)
	assert.True(t, res.IsFallback)
	assert.Contains(t, res.Description, "no JSON found")
}

func TestClassifyUndecodableImageFallsBack(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusOK, `{"wasteType":"paper"}`)
	svc := newClassifier(srv.URL)

	payload := base64.StdEncoding.EncodeToString([]byte("definitely not an image"))
	res, err := svc.Classify(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, res.IsFallback)
}

func TestClassifyInputErrors(t *testing.T) {
	svc := NewClassifierService(config.GeminiConfig{}, NewImageService(1024, 64))

	_, err := svc.Classify(context.Background(), "")
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "image", apperror.Field(err))

	big := base64.StdEncoding.EncodeToString(make([]byte, 4096))
	_, err = svc.Classify(context.Background(), big)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Classify(context.Background(), "!!!not-base64!!!")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestParseScanResponse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want ScanResult
	}{
		{
			name: "plain object",
			text: `{"wasteType":"PAPER","confidence":70,"estimatedWeight":1.2,"description":"Cardboard box"}`,
			want: ScanResult{WasteType: models.WastePaper, Confidence: 70, EstimatedWeight: 1.2, Description: "Cardboard box"},
		},
		{
			name: "unknown category and out of range numbers",
			text: `Result: {"wasteType":"glass","confidence":180,"estimatedWeight":42}`,
			want: ScanResult{WasteType: models.WasteOrganic, Confidence: 100, EstimatedWeight: 10, Description: "Waste detected"},
		},
		{
			name: "missing numbers use defaults",
			text: "```\n{\"wasteType\":\" Plastic \"}\n```",
			want: ScanResult{WasteType: models.WastePlastic, Confidence: 50, EstimatedWeight: 0.5, Description: "Waste detected"},
		},
		{
			name: "numeric strings",
			text: `{"wasteType":"metal","confidence":"64%","estimatedWeight":"0.05","description":"Foil"}`,
			want: ScanResult{WasteType: models.WasteMetal, Confidence: 64, EstimatedWeight: 0.1, Description: "Foil"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScanResponse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}

	_, err := parseScanResponse("no json here")
	assert.Error(t, err)
	_, err = parseScanResponse("{not json}")
	assert.Error(t, err)
}
