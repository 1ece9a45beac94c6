// Package delivery provides the HTTP transports that carry batches to the
// collector: a confirmed request path and an unconfirmed beacon path.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/telemetry"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/pkg/config"
)

// maxAckBytes bounds how much of a response body is read.
const maxAckBytes = 64 * 1024

// HTTPSender posts JSON batches and reports the collector's verdict.
type HTTPSender struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   *logging.ChanneledLogger
}

// NewHTTPSender returns a sender for endpoint. A nil client uses a fresh
// http.Client; timeout bounds each request.
func NewHTTPSender(endpoint string, client *http.Client, timeout time.Duration, logger *logging.ChanneledLogger) *HTTPSender {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = config.RequestTimeout
	}
	return &HTTPSender{endpoint: endpoint, client: client, timeout: timeout, logger: logger}
}

// Send implements telemetry.Sender.
func (s *HTTPSender) Send(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return &telemetry.DeliveryError{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &telemetry.DeliveryError{Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxAckBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &telemetry.DeliveryError{
			StatusCode: resp.StatusCode,
			Retryable:  telemetry.RetryableStatus(resp.StatusCode),
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	if readErr != nil {
		// The collector already accepted the batch; a truncated ack changes nothing.
		s.logger.Delivery().Warn("Failed to read collector acknowledgement", "error", readErr.Error())
		return nil
	}

	if ack, ok := s.parseAck(body); ok {
		s.logger.Delivery().Debug("Collector acknowledged batch", "status", resp.StatusCode, "accepted", ack.Accepted)
	} else if len(bytes.TrimSpace(body)) > 0 {
		s.logger.Delivery().Warn("Collector acknowledgement is not valid JSON", "status", resp.StatusCode)
	}
	return nil
}

// parseAck reports whether body is valid JSON. The ack is loosely typed, so
// an unexpected shape is still an acknowledgement.
func (s *HTTPSender) parseAck(body []byte) (events.Ack, bool) {
	var ack events.Ack
	if len(bytes.TrimSpace(body)) == 0 || !json.Valid(body) {
		return ack, false
	}
	if err := json.Unmarshal(body, &ack); err != nil {
		s.logger.Delivery().Debug("Collector acknowledgement has an unexpected shape", "error", err.Error())
	}
	return ack, true
}
