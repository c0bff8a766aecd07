package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"drinkpoint-api/internal/cache"
)

func TestImageURL(t *testing.T) {
	url, err := ImageURL(ImageInput{Bytes: []byte("abc"), ContentType: "image/png"})
	if err != nil || url != "data:image/png;base64,YWJj" {
		t.Fatalf("got %q, %v", url, err)
	}
	url, _ = ImageURL(ImageInput{Bytes: []byte("abc")})
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("default content type not applied: %q", url)
	}
	url, _ = ImageURL(ImageInput{URL: "https://cdn/x.jpg"})
	if url != "https://cdn/x.jpg" {
		t.Fatalf("got %q", url)
	}
	if _, err := ImageURL(ImageInput{}); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
}

func TestBuildPromptListsBrands(t *testing.T) {
	p := BuildPrompt([]string{"Golden Hop", "Golden Hop Zero"})
	for _, want := range []string{"brandName", "isTargetBrand", "gin_soda", "Golden Hop Zero"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestOpenAIClassifier(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "vision-test",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"brandName\":\"Golden Hop\",\"category\":\"draft_beer\"}"}
			}]
		}`)
	}))
	defer srv.Close()

	c := NewOpenAIClassifier(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "vision-test",
		Timeout: 5 * time.Second,
	}, nil, nil)

	raw, err := c.Classify(context.Background(), ImageInput{Bytes: []byte{1, 2, 3}, ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !strings.Contains(string(raw), "Golden Hop") {
		t.Fatalf("unexpected reply %q", raw)
	}
	if body["model"] != "vision-test" {
		t.Fatalf("model not sent: %v", body["model"])
	}
	if !strings.Contains(mustJSON(body["messages"]), "data:image/jpeg;base64,AQID") {
		t.Fatal("image data url not sent")
	}
}

func mustJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestCachedClassifier(t *testing.T) {
	var calls int32
	inner := Func(func(ctx context.Context, img ImageInput) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`{"brandName":"x"}`), nil
	})

	mc := cache.NewMemoryCache()
	defer mc.Close()
	c := NewCachedClassifier(inner, mc, time.Hour, nil, nil)

	img := ImageInput{Bytes: []byte("same photo")}
	for i := 0; i < 3; i++ {
		raw, err := c.Classify(context.Background(), img)
		if err != nil || string(raw) != `{"brandName":"x"}` {
			t.Fatalf("got %q, %v", raw, err)
		}
	}
	if calls != 1 {
		t.Fatalf("upstream called %d times", calls)
	}

	c.Classify(context.Background(), ImageInput{Bytes: []byte("other photo")})
	if calls != 2 {
		t.Fatalf("different photo should miss, calls=%d", calls)
	}
}

func TestCachedClassifierDoesNotCacheErrors(t *testing.T) {
	var calls int32
	boom := errors.New("upstream down")
	inner := Func(func(ctx context.Context, img ImageInput) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	})

	mc := cache.NewMemoryCache()
	defer mc.Close()
	c := NewCachedClassifier(inner, mc, time.Hour, nil, nil)

	img := ImageInput{Bytes: []byte("photo")}
	for i := 0; i < 2; i++ {
		if _, err := c.Classify(context.Background(), img); !errors.Is(err, boom) {
			t.Fatalf("expected upstream error, got %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("errors must not be cached, calls=%d", calls)
	}
}
