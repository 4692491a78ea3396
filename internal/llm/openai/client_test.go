package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"voice-intake/internal/forms"
	"voice-intake/internal/llm"
)

func newTestServer(t *testing.T, status int, content string) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	oldURL := apiURL
	t.Cleanup(func() { apiURL = oldURL })

	var mu sync.Mutex
	var bodies []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		bodies = append(bodies, payload)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(content))
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
			"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	apiURL = server.URL
	return server, &bodies
}

func newTestClient(t *testing.T, model string) *Client {
	t.Helper()
	client, err := NewClient("test-key", model, forms.Default(), 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient("", "gpt-4o-mini", nil, 0); err == nil {
		t.Fatal("expected error without api key")
	}
	if _, err := NewClient("k", " ", nil, 0); err == nil {
		t.Fatal("expected error without model")
	}
}

func TestExtractParsesResult(t *testing.T) {
	content := `{"document_type":"name_change","confidence":0.92,"detected_language":"hi-IN",
		"extracted_fields":{"applicant_full_name":"Ravi","applicant_age":34},
		"missing_required_fields":["new_name","reason"],
		"suggested_questions":["आप क्या नया नाम चाहते हैं?"]}`
	_, bodies := newTestServer(t, http.StatusOK, content)

	res, err := newTestClient(t, "gpt-4o-mini").Extract(context.Background(), llm.ExtractionRequest{
		Transcript:   "I want to change my name, I am Ravi",
		LanguageHint: "auto",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.DocumentType != "name_change" || res.DetectedLanguage != "hi" {
		t.Fatalf("result = %+v", res)
	}
	if res.ExtractedFields["applicant_age"] != "34" {
		t.Fatalf("fields = %v", res.ExtractedFields)
	}
	if len(res.MissingRequiredFields) != 2 || len(res.SuggestedQuestions) != 1 {
		t.Fatalf("missing=%v questions=%v", res.MissingRequiredFields, res.SuggestedQuestions)
	}

	body := (*bodies)[0]
	if rf, _ := body["response_format"].(map[string]any); rf["type"] != "json_object" {
		t.Fatalf("response_format = %v", body["response_format"])
	}
	if _, ok := body["temperature"]; !ok {
		t.Fatal("expected temperature for gpt-4o-mini")
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d", len(msgs))
	}
	dev, _ := msgs[1].(map[string]any)
	if content, _ := dev["content"].(string); !strings.Contains(content, "new_name*") {
		t.Fatal("developer prompt should list catalog fields")
	}
}

func TestExtractRejectsMissingDocumentType(t *testing.T) {
	newTestServer(t, http.StatusOK, `{"confidence":0.1}`)
	_, err := newTestClient(t, "gpt-4o-mini").Extract(context.Background(), llm.ExtractionRequest{Transcript: "hello"})
	if !errors.Is(err, llm.ErrMalformedResponse) {
		t.Fatalf("err = %v, want malformed", err)
	}
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantValue string
		wantFound bool
	}{
		{name: "string value", content: `{"value":"Ravi Kumar"}`, wantValue: "Ravi Kumar", wantFound: true},
		{name: "number value", content: `{"value":42}`, wantValue: "42", wantFound: true},
		{name: "null value", content: `{"value":null}`, wantFound: false},
		{name: "missing key", content: `{}`, wantFound: false},
		{name: "blank value", content: `{"value":"  "}`, wantFound: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			newTestServer(t, http.StatusOK, tt.content)
			got, err := newTestClient(t, "gpt-5-mini").Interpret(context.Background(), llm.InterpretRequest{
				Transcript: "answer",
				FieldName:  "new_name",
				FieldHint:  "Your desired new name",
				Language:   "hi",
			})
			if err != nil {
				t.Fatalf("Interpret: %v", err)
			}
			if got.Found != tt.wantFound || got.Value != tt.wantValue {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestInterpretOmitsTemperatureForGPT5(t *testing.T) {
	_, bodies := newTestServer(t, http.StatusOK, `{"value":"x"}`)
	if _, err := newTestClient(t, "gpt-5-mini").Interpret(context.Background(), llm.InterpretRequest{Transcript: "x", FieldName: "reason"}); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if _, ok := (*bodies)[0]["temperature"]; ok {
		t.Fatal("expected temperature to be omitted for gpt-5 models")
	}
}

func TestServerErrorIsRetryable(t *testing.T) {
	newTestServer(t, http.StatusBadGateway, `upstream down`)
	_, err := newTestClient(t, "gpt-4o-mini").Interpret(context.Background(), llm.InterpretRequest{Transcript: "x"})
	if err == nil || !strings.Contains(err.Error(), "http status 502") {
		t.Fatalf("err = %v", err)
	}
	if errors.Is(err, llm.ErrMalformedResponse) {
		t.Fatal("server errors must not be classified as malformed")
	}
}

func TestBuildInterpretPromptUsesLanguageName(t *testing.T) {
	msgs := BuildInterpretPrompt(llm.InterpretRequest{Transcript: "रवि कुमार", FieldName: "new_name", FieldHint: "Your desired new name", Language: "hi"})
	if !strings.Contains(msgs[1].Content, "Hindi") || !strings.Contains(msgs[1].Content, "new_name") {
		t.Fatalf("developer prompt = %q", msgs[1].Content)
	}
	if !strings.Contains(msgs[2].Content, "रवि कुमार") {
		t.Fatalf("user prompt = %q", msgs[2].Content)
	}
}
