package providers

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxLoggedBody = 512

// LoggingTransport logs every outbound request at debug level. JSON bodies
// are logged as a truncated snippet; other bodies only by size.
type LoggingTransport struct {
	Logger *zap.Logger
	Proxy  http.RoundTripper
}

func NewLoggingTransport(logger *zap.Logger, proxy http.RoundTripper) *LoggingTransport {
	if proxy == nil {
		proxy = http.DefaultTransport
	}
	return &LoggingTransport{Logger: logger, Proxy: proxy}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.Proxy.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.Logger.Debug("provider request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Logger.Debug("failed to read provider response body",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Error(err),
		)
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status_code", resp.StatusCode),
		zap.Int("body_size", len(bodyBytes)),
		zap.Duration("duration", duration),
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		snippet := bodyBytes
		if len(snippet) > maxLoggedBody {
			snippet = snippet[:maxLoggedBody]
		}
		fields = append(fields, zap.ByteString("body_snippet", snippet))
	}
	t.Logger.Debug("provider request completed", fields...)

	return resp, nil
}
