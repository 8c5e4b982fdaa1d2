package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/pkg/resilience"
)

const pageJSON = `{"panel_label":"+A1","sheet_number":100,"is_schematic_page":true,` +
	`"wires":[{"id":"24","from":"QM102.1","to":"108","gauge":"1mm²"}],` +
	`"components":[{"ref":"QM102","description":"motor protection switch"}],"warnings":[]}`

func testClient(url string, breaker resilience.BreakerOpts) *Client {
	return NewClient(Options{
		BaseURL:  url,
		APIKey:   "test-key",
		Model:    "test-model",
		Interval: time.Nanosecond,
		Burst:    100,
		Breaker:  breaker,
	})
}

func chatReply(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": content}}},
	})
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	return b
}

func TestRecognizeParsesPage(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write(chatReply(t, pageJSON))
	}))
	defer srv.Close()

	c := testClient(srv.URL, resilience.BreakerOpts{})
	extract, err := c.Recognize(context.Background(), domain.PagePayload{Index: 4, Image: []byte("fakepng"), MIME: "image/png"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "test-model" || gotReq.Temperature != 0 {
		t.Errorf("request model=%q temperature=%v", gotReq.Model, gotReq.Temperature)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_schema" {
		t.Errorf("response_format = %+v", gotReq.ResponseFormat)
	}
	if len(gotReq.Messages) != 2 || len(gotReq.Messages[1].Content) != 2 {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
	img := gotReq.Messages[1].Content[1]
	if img.ImageURL == nil || !strings.HasPrefix(img.ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("image part = %+v", img)
	}

	if extract.PanelLabel != "+A1" || extract.Foglio != 100 || !extract.IsSchematic {
		t.Errorf("extract header = %+v", extract)
	}
	if len(extract.Wires) != 1 || extract.Wires[0].ID != "24" || extract.Wires[0].To != "108" {
		t.Errorf("wires = %+v", extract.Wires)
	}
	if len(extract.Components) != 1 || extract.Components[0].Ref != "QM102" {
		t.Errorf("components = %+v", extract.Components)
	}
}

func TestRecognizeClassifiesStatus(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		sentinel  error
		retriable bool
	}{
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited, true},
		{"server error", http.StatusBadGateway, domain.ErrTransient, true},
		{"bad auth", http.StatusUnauthorized, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			_, err := testClient(srv.URL, resilience.BreakerOpts{}).Recognize(context.Background(), domain.PagePayload{Index: 1, RawText: "x"})
			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.sentinel != nil && !errors.Is(err, tc.sentinel) {
				t.Errorf("error %v does not wrap %v", err, tc.sentinel)
			}
			if got := domain.Retriable(err); got != tc.retriable {
				t.Errorf("Retriable = %v, want %v", got, tc.retriable)
			}
		})
	}
}

func TestRecognizeMalformedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatReply(t, "here is the wiring you asked for"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, resilience.BreakerOpts{}).Recognize(context.Background(), domain.PagePayload{Index: 1, RawText: "x"})
	if !errors.Is(err, domain.ErrMalformedOutput) {
		t.Errorf("error = %v, want ErrMalformedOutput", err)
	}
}

func TestRecognizeStripsCodeFence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatReply(t, "```json\n"+pageJSON+"\n```"))
	}))
	defer srv.Close()

	extract, err := testClient(srv.URL, resilience.BreakerOpts{}).Recognize(context.Background(), domain.PagePayload{Index: 1, RawText: "x"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(extract.Wires) != 1 {
		t.Errorf("wires = %+v", extract.Wires)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL, resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Minute})
	for i := 0; i < 2; i++ {
		if _, err := c.Recognize(context.Background(), domain.PagePayload{Index: 1, RawText: "x"}); !errors.Is(err, domain.ErrTransient) {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	_, err := c.Recognize(context.Background(), domain.PagePayload{Index: 1, RawText: "x"})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("open breaker should classify as unavailable, got %v", err)
	}
	if hits != 2 {
		t.Errorf("server hit %d times, want 2", hits)
	}
}
