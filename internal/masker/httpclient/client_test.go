package httpclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/pii-mask/internal/logging"
)

func TestMaskRoundTrip(t *testing.T) {
	image := []byte("raw-image-bytes")
	masked := []byte("masked-image-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/mask" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req maskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("unreadable request: %v", err)
		}
		if req.ContentType != "image/png" {
			t.Errorf("unexpected content type: %s", req.ContentType)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.ImageData)
		if err != nil || string(decoded) != string(image) {
			t.Errorf("image payload mismatch: %v", err)
		}

		json.NewEncoder(w).Encode(maskResponse{
			MaskedImage: base64.StdEncoding.EncodeToString(masked),
			ContentType: "image/png",
			Regions:     2,
			Message:     "redacted 2 regions",
		})
	}))
	defer server.Close()

	client := New(server.URL, time.Second, zap.NewNop())
	result, err := client.Mask(context.Background(), "image/png", image)
	if err != nil {
		t.Fatalf("mask failed: %v", err)
	}
	if string(result.MaskedImage) != string(masked) {
		t.Fatalf("unexpected masked payload: %q", result.MaskedImage)
	}
	if result.Regions != 2 {
		t.Fatalf("expected 2 regions, got %d", result.Regions)
	}
	if result.ContentType != "image/png" {
		t.Fatalf("unexpected content type: %s", result.ContentType)
	}
}

func TestMaskFallsBackToInputContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(maskResponse{
			MaskedImage: base64.StdEncoding.EncodeToString([]byte("masked")),
		})
	}))
	defer server.Close()

	client := New(server.URL, time.Second, zap.NewNop())
	result, err := client.Mask(context.Background(), "image/webp", []byte("img"))
	if err != nil {
		t.Fatalf("mask failed: %v", err)
	}
	if result.ContentType != "image/webp" {
		t.Fatalf("expected input content type fallback, got %s", result.ContentType)
	}
}

func TestMaskWrapsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, time.Second, zap.NewNop())
	_, err := client.Mask(context.Background(), "image/png", []byte("img"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "maskerclient.mask" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
}

func TestMaskRejectsInvalidBase64Payload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(maskResponse{MaskedImage: "!!! not base64 !!!"})
	}))
	defer server.Close()

	client := New(server.URL, time.Second, zap.NewNop())
	if _, err := client.Mask(context.Background(), "image/png", []byte("img")); err == nil {
		t.Fatal("expected error for invalid base64 payload")
	}
}
