package httpclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/pii-mask/internal/logging"
	"github.com/example/pii-mask/internal/masker"
)

// maxErrorBody bounds how much of an upstream error payload is read for logs.
const maxErrorBody = 4 << 10

type maskRequest struct {
	ContentType string `json:"content_type"`
	ImageData   string `json:"image_data"`
}

type maskResponse struct {
	MaskedImage string `json:"masked_image"`
	ContentType string `json:"content_type"`
	Regions     int    `json:"regions"`
	Message     string `json:"message"`
}

// New returns a ready-to-use HTTP client for the masking service.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) masker.Client {
	return &httpMasker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("masker_client"),
	}
}

type httpMasker struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func (h *httpMasker) Mask(ctx context.Context, contentType string, image []byte) (*masker.Result, error) {
	payload, err := json.Marshal(maskRequest{
		ContentType: contentType,
		ImageData:   base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, logging.NewOperationError("maskerclient.encode_request", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/mask", bytes.NewReader(payload))
	if err != nil {
		return nil, logging.NewOperationError("maskerclient.build_request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		wrapped := logging.NewOperationError("maskerclient.mask", "", err)
		h.logger.Error("masking service call failed", zap.Error(wrapped))
		return nil, wrapped
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := fmt.Errorf("masking service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		wrapped := logging.NewOperationError("maskerclient.mask", "", err)
		h.logger.Error("masking service rejected request", zap.Error(wrapped), zap.Int("status", resp.StatusCode))
		return nil, wrapped
	}

	var decoded maskResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		wrapped := logging.NewOperationError("maskerclient.decode_response", "", err)
		h.logger.Error("masking service response unreadable", zap.Error(wrapped))
		return nil, wrapped
	}

	masked, err := base64.StdEncoding.DecodeString(decoded.MaskedImage)
	if err != nil {
		wrapped := logging.NewOperationError("maskerclient.decode_image", "", err)
		h.logger.Error("masked image payload not valid base64", zap.Error(wrapped))
		return nil, wrapped
	}

	out := &masker.Result{
		MaskedImage: masked,
		ContentType: decoded.ContentType,
		Regions:     decoded.Regions,
		Message:     decoded.Message,
	}
	if out.ContentType == "" {
		out.ContentType = contentType
	}
	return out, nil
}
