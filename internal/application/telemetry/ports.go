package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// KeyValueStore is the session-scoped storage the host provides.
type KeyValueStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Sender is the standard request/response primitive. A nil error means the
// collector acknowledged the batch.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// BeaconSender is the unload-safe primitive. It reports whether the send was
// scheduled; the outcome of the send itself is never observed.
type BeaconSender interface {
	SendBeacon(payload []byte) bool
}

// DeliveryError is returned by a Sender when a batch was not accepted.
type DeliveryError struct {
	StatusCode int // 0 for transport failures
	Retryable  bool
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("delivery failed: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("collector responded %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("collector responded %d", e.StatusCode)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// RetryableStatus reports whether a collector status signals a transient
// condition worth retrying.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

// IsRetryable classifies a Send error. Errors that are not a DeliveryError
// are treated as transport failures.
func IsRetryable(err error) bool {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Retryable
	}
	return true
}
