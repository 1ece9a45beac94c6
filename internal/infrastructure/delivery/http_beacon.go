package delivery

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/pkg/config"
)

// beaconContentType is what browsers send for a string beacon body.
const beaconContentType = "text/plain;charset=UTF-8"

// HTTPBeacon dispatches batches on detached goroutines without waiting for
// the outcome. Bytes in flight share one quota, like a browser's keepalive
// budget.
type HTTPBeacon struct {
	endpoint string
	client   *http.Client
	quota    int
	timeout  time.Duration
	logger   *logging.ChanneledLogger

	mu       sync.Mutex
	inFlight int
	pending  sync.WaitGroup
}

// NewHTTPBeacon returns a beacon for endpoint. quota <= 0 uses
// config.BeaconMaxBytes.
func NewHTTPBeacon(endpoint string, client *http.Client, quota int, timeout time.Duration, logger *logging.ChanneledLogger) *HTTPBeacon {
	if client == nil {
		client = &http.Client{}
	}
	if quota <= 0 {
		quota = config.BeaconMaxBytes
	}
	if timeout <= 0 {
		timeout = config.BeaconTimeout
	}
	return &HTTPBeacon{endpoint: endpoint, client: client, quota: quota, timeout: timeout, logger: logger}
}

// SendBeacon implements telemetry.BeaconSender. It refuses payloads that do
// not fit in the remaining quota.
func (b *HTTPBeacon) SendBeacon(payload []byte) bool {
	size := len(payload)

	b.mu.Lock()
	if size > b.quota-b.inFlight {
		b.mu.Unlock()
		b.logger.Delivery().Debug("Beacon refused", "bytes", size, "inFlight", b.inFlight, "quota", b.quota)
		return false
	}
	b.inFlight += size
	b.pending.Add(1)
	b.mu.Unlock()

	body := append([]byte(nil), payload...)
	go b.dispatch(body)
	return true
}

func (b *HTTPBeacon) dispatch(body []byte) {
	defer func() {
		b.mu.Lock()
		b.inFlight -= len(body)
		b.mu.Unlock()
		b.pending.Done()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		b.logger.Delivery().Debug("Beacon request could not be built", "error", err.Error())
		return
	}
	req.Header.Set("Content-Type", beaconContentType)

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Delivery().Debug("Beacon send failed", "error", err.Error())
		return
	}
	resp.Body.Close()
	b.logger.Delivery().Debug("Beacon delivered", "status", resp.StatusCode, "bytes", len(body))
}

// Wait blocks until every dispatched beacon has finished. Hosts that outlive
// the page call it before exiting.
func (b *HTTPBeacon) Wait() {
	b.pending.Wait()
}
