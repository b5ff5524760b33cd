package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mids-neo/mnr-form-api/internal/document"
	"github.com/mids-neo/mnr-form-api/internal/mnr"
)

func pngDoc() *document.Document {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		panic(err)
	}
	return document.FromBytes("scan.png", buf.Bytes())
}

func visionServer(t *testing.T, content string, tokens int, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])
		rf := body["response_format"].(map[string]any)
		assert.Equal(t, "json_object", rf["type"])

		// The prompt and an image must both be present
		messages := body["messages"].([]any)
		require.Len(t, messages, 1)
		parts := messages[0].(map[string]any)["content"].([]any)
		require.Len(t, parts, 2)
		text := parts[0].(map[string]any)["text"].(string)
		assert.Contains(t, text, "Primary_Care_Physician")
		imageURL := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
		assert.True(t, strings.HasPrefix(imageURL, "data:image/png;base64,"))

		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error": {"message": "boom"}}`)
			return
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
			"usage": map[string]any{"total_tokens": tokens},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestVision(serverURL string) *VisionExtractor {
	return NewVisionExtractor(VisionConfig{
		APIKey:  "test-key",
		BaseURL: serverURL,
		Model:   "gpt-4o",
	}, document.NewRasterizer("pdftoppm", 300, nil), nil)
}

func TestVisionExtractor_Extract(t *testing.T) {
	content := `{"Primary_Care_Physician": "Dr. Adams", "Current_Health_Problems": "back pain", "Pain_Level": {"Current": "4/10"}}`
	srv := visionServer(t, content, 2000, http.StatusOK)
	defer srv.Close()

	v := newTestVision(srv.URL)
	res, err := v.Extract(context.Background(), pngDoc())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, MethodVision, res.Method)
	assert.Equal(t, "Dr. Adams", res.Fields["Primary_Care_Physician"])
	assert.Equal(t, 2000, res.Tokens)
	assert.InDelta(t, 0.92, res.Confidence, 1e-9)

	// 2000 tokens at 80/20 split: 1600/1000*0.005 + 400/1000*0.015
	assert.InDelta(t, 0.014, res.Cost, 1e-9)

	meta, ok := res.Fields[MetadataKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "vision", meta["method"])
	assert.Equal(t, "gpt-4o", meta["model"])

	stats := v.Stats()
	assert.Equal(t, 1, stats.FormsProcessed)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, 2000, stats.TotalTokens)
}

func TestVisionExtractor_CodeFencedContent(t *testing.T) {
	content := "```json\n{\"Primary_Care_Physician\": \"Dr. Adams\"}\n```"
	srv := visionServer(t, content, 100, http.StatusOK)
	defer srv.Close()

	res, err := newTestVision(srv.URL).Extract(context.Background(), pngDoc())
	require.NoError(t, err)
	assert.Equal(t, "Dr. Adams", res.Fields["Primary_Care_Physician"])
}

func TestVisionExtractor_HTTPError(t *testing.T) {
	srv := visionServer(t, "", 0, http.StatusInternalServerError)
	defer srv.Close()

	v := newTestVision(srv.URL)
	res, err := v.Extract(context.Background(), pngDoc())
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "vision status 500")
	assert.Equal(t, 1, v.Stats().Failures)
}

func TestVisionExtractor_ShapeMismatch(t *testing.T) {
	// A scalar where the schema expects a container is a structural break
	content := `{"Pain_Level": "severe"}`
	srv := visionServer(t, content, 100, http.StatusOK)
	defer srv.Close()

	_, err := newTestVision(srv.URL).Extract(context.Background(), pngDoc())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestVisionExtractor_CoercibleValuesSucceed(t *testing.T) {
	// Numeric pain levels and stringly weights are normalization's to fix,
	// not grounds to reject an otherwise readable extraction.
	content := `{"Primary_Care_Physician": "Dr. Adams", "Pain_Level": {"Current": 7}, "Weight_lbs": "170"}`
	srv := visionServer(t, content, 100, http.StatusOK)
	defer srv.Close()

	res, err := newTestVision(srv.URL).Extract(context.Background(), pngDoc())
	require.NoError(t, err)
	assert.True(t, res.Success)

	cleaned, _ := mnr.Process(res.Fields)
	levels, ok := cleaned["Pain_Level"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "7/10", levels["Current"])
}

func TestVisionExtractor_EmptyContent(t *testing.T) {
	srv := visionServer(t, "", 50, http.StatusOK)
	defer srv.Close()

	_, err := newTestVision(srv.URL).Extract(context.Background(), pngDoc())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty content")
}

func TestVisionExtractor_Available(t *testing.T) {
	v := NewVisionExtractor(VisionConfig{}, nil, nil)
	ok, status := v.Available()
	assert.False(t, ok)
	assert.Contains(t, status, "API key")

	v = NewVisionExtractor(VisionConfig{APIKey: "k"}, nil, nil)
	ok, _ = v.Available()
	assert.True(t, ok)
}

func TestVisionExtractor_CostCalculation(t *testing.T) {
	v := NewVisionExtractor(VisionConfig{APIKey: "k", Model: "gpt-4o"}, nil, nil)
	assert.InDelta(t, 0.007, v.calculateCost(1000), 1e-9)

	other := NewVisionExtractor(VisionConfig{APIKey: "k", Model: "other-model"}, nil, nil)
	assert.InDelta(t, 0.002, other.calculateCost(1000), 1e-9)
}
