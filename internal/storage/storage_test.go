package storage

import (
	"context"
	"testing"
	"time"
)

func TestCaptureKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("JST", 9*3600))
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", "captures/2024/03/09/42.jpg"},
		{"image/PNG; charset=binary", "captures/2024/03/09/42.png"},
		{"application/octet-stream", "captures/2024/03/09/42.bin"},
	}
	for _, tt := range tests {
		if got := CaptureKey(at, 42, tt.contentType); got != tt.want {
			t.Errorf("CaptureKey(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestExtension(t *testing.T) {
	if ext, ok := Extension("image/webp"); !ok || ext != ".webp" {
		t.Fatalf("got %q %v", ext, ok)
	}
	if _, ok := Extension("text/plain"); ok {
		t.Fatal("text/plain should not be an image")
	}
}

func TestMemoryImageStore(t *testing.T) {
	s := NewMemoryImageStore("https://cdn.example.com/")
	body := []byte{0xff, 0xd8, 0xff}

	url, err := s.Put(context.Background(), "captures/2024/01/01/1.jpg", "image/jpeg", body)
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://cdn.example.com/captures/2024/01/01/1.jpg" {
		t.Fatalf("unexpected url %q", url)
	}

	body[0] = 0
	obj, ok := s.Get("captures/2024/01/01/1.jpg")
	if !ok || obj.Body[0] != 0xff || obj.ContentType != "image/jpeg" {
		t.Fatalf("unexpected object %+v", obj)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Put(ctx, "x", "image/png", body); err == nil {
		t.Fatal("expected context error")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 object, got %d", s.Len())
	}
	if err := s.Delete(context.Background(), "captures/2024/01/01/1.jpg"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(context.Background(), "missing"); err != nil {
		t.Fatalf("deleting a missing key: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}
