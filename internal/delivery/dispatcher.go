package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spenzahq/webhook-relay/pkg/config"
	"github.com/spenzahq/webhook-relay/pkg/db/models"
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
	"github.com/spenzahq/webhook-relay/pkg/logger"
	"github.com/spenzahq/webhook-relay/pkg/metrics"
	"github.com/spenzahq/webhook-relay/pkg/signature"
)

const (
	userAgent      = "Spenza-Webhook-Service"
	userAgentRetry = "Spenza-Webhook-Service-Retry"

	headerWebhookSource  = "X-Webhook-Source"
	headerEventTimestamp = "X-Event-Timestamp"
	headerRetryAttempt   = "X-Retry-Attempt"
)

// Dispatcher forwards one event payload to its subscription's callback URL.
// It performs exactly one HTTP POST per call: retry orchestration belongs to
// the callers (ingress does the first best-effort attempt, the retry worker
// governs the rest).
type Dispatcher struct {
	client  *http.Client
	logg    *logger.Logger
	metrics *metrics.DeliveryMetrics
	now     func() time.Time
}

// NewDispatcher builds a dispatcher whose outbound calls are bounded by the
// configured timeout (10s by default).
func NewDispatcher(cfg config.DeliveryConfig, logg *logger.Logger, m *metrics.DeliveryMetrics) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		client:  &http.Client{Timeout: timeout},
		logg:    logg,
		metrics: m,
		now:     time.Now,
	}
}

// Deliver posts the payload to the subscription's callback URL with the relay
// headers and, when the subscription carries a secret, an HMAC signature. The
// attempt number is 1 for the ingress attempt; attempts >= 2 advertise
// themselves via X-Retry-Attempt. The subscription's active flag is re-checked
// here to catch deactivations that happened between retries.
func (d *Dispatcher) Deliver(ctx context.Context, sub *models.WebhookSubscription, payload json.RawMessage, attempt int) Result {
	start := d.now()

	if sub == nil {
		return d.observe(ctx, start, failed(0, pkgerrors.New(pkgerrors.CodeInternal, "subscription is required")))
	}
	if !sub.IsActive {
		return d.observe(ctx, start, inactive())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.CallbackURL, bytes.NewReader(payload))
	if err != nil {
		return d.observe(ctx, start, failed(0, pkgerrors.Wrap(pkgerrors.CodeDelivery, err,
			fmt.Sprintf("Failed to forward webhook: %s", err.Error()))))
	}

	req.Header.Set("Content-Type", "application/json")
	if attempt >= 2 {
		req.Header.Set("User-Agent", userAgentRetry)
		req.Header.Set(headerRetryAttempt, strconv.Itoa(attempt))
	} else {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set(headerWebhookSource, sub.SourceURL)
	req.Header.Set(headerEventTimestamp, d.now().UTC().Format(time.RFC3339))

	if sub.Secret != "" {
		digest, err := signature.Sign(payload, sub.Secret)
		if err != nil {
			typed := pkgerrors.As(err)
			if typed == nil {
				typed = pkgerrors.Wrap(pkgerrors.CodeSerialization, err, "sign payload")
			}
			return d.observe(ctx, start, failed(0, typed))
		}
		req.Header.Set(signature.Header, digest)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return d.observe(ctx, start, failed(0, pkgerrors.Wrap(pkgerrors.CodeDelivery, err,
			fmt.Sprintf("Failed to forward webhook: %s", err.Error()))))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return d.observe(ctx, start, failed(resp.StatusCode, pkgerrors.New(pkgerrors.CodeDelivery,
			fmt.Sprintf("Failed to forward webhook: callback responded with status %d", resp.StatusCode))))
	}

	return d.observe(ctx, start, delivered(resp.StatusCode))
}

func (d *Dispatcher) observe(ctx context.Context, start time.Time, result Result) Result {
	duration := d.now().Sub(start)
	if d.metrics != nil {
		d.metrics.Observe(string(result.Outcome), duration)
	}
	if d.logg != nil && result.Outcome == OutcomeFailed {
		ctx = d.logg.WithFields(ctx, map[string]any{
			"status_code": result.StatusCode,
			"duration_ms": duration.Milliseconds(),
		})
		d.logg.Warn(ctx, result.ErrorMessage())
	}
	return result
}
