package wpcompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/pressbridge/internal/logging"
)

// HeaderMap accepts header values as a string or an array of strings, the
// two forms batch clients send.
type HeaderMap http.Header

func (h *HeaderMap) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*h = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(http.Header, len(raw))
	for k, v := range raw {
		var one string
		if err := json.Unmarshal(v, &one); err == nil {
			out.Add(k, one)
			continue
		}
		var many []string
		if err := json.Unmarshal(v, &many); err != nil {
			return fmt.Errorf("header %s: %w", k, err)
		}
		for _, m := range many {
			out.Add(k, m)
		}
	}
	*h = HeaderMap(out)
	return nil
}

// BatchItem is one sub-request of a batch call.
type BatchItem struct {
	Path    string          `json:"path"`
	Method  string          `json:"method,omitempty"`
	Headers HeaderMap       `json:"headers,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

type BatchRequest struct {
	Requests []BatchItem `json:"requests"`
}

type BatchResponse struct {
	Responses []Response `json:"responses"`
}

// Dispatch runs items one after another, in order, and returns exactly one
// response per item. A failing item never stops the ones after it. The error
// return is reserved for problems with the batch as a whole, detected before
// any item runs.
func (s *Service) Dispatch(ctx context.Context, items []BatchItem, fallback, issuer string) ([]Response, *APIError) {
	if len(items) == 0 {
		return nil, errInvalidParam("Invalid parameter(s): requests must be a non-empty array")
	}
	if len(items) > s.opts.BatchMaxItems {
		return nil, newError(http.StatusBadRequest, "rest_batch_max_requests",
			fmt.Sprintf("The maximum number of requests for this batch is %d.", s.opts.BatchMaxItems))
	}
	if !s.tokens.Configured() {
		return nil, errNotConfigured()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Response, 0, len(items))
	for i, item := range items {
		resp := s.dispatchOne(ctx, item, fallback, issuer)
		s.log.Info("batch item",
			zap.Int("index", i),
			zap.String("method", item.Method),
			zap.String("path", item.Path),
			zap.Int("status", resp.Status),
			logging.Headers("headers", http.Header(item.Headers)),
		)
		out = append(out, resp)
	}
	return out, nil
}

func (s *Service) dispatchOne(ctx context.Context, item BatchItem, fallback, issuer string) (resp Response) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("batch item panicked", zap.Any("panic", p), zap.String("path", item.Path))
			resp = newError(http.StatusInternalServerError, "rest_cannot_create", "Internal error while handling the request.").response()
		}
	}()

	h, ok := s.match(item.Method, NormalizePath(item.Path))
	if !ok {
		return errNotFound().response()
	}
	header := http.Header(item.Headers)
	if header == nil {
		header = http.Header{}
	}
	return s.exec(ctx, h, &Request{
		Method:   item.Method,
		Path:     item.Path,
		Header:   header,
		Body:     item.Body,
		Fallback: fallback,
		Issuer:   issuer,
	})
}
