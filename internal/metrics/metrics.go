// Package metrics exposes credential issuance and redemption counters.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"eventpass/internal/attendance"
	"eventpass/internal/credential"
)

const namespace = "eventpass"

// Redemption outcomes.
const (
	OutcomeSuccess           = "success"
	OutcomeAlreadyRedeemed   = "already_redeemed"
	OutcomeInvalidCredential = "invalid_credential"
	OutcomeEventMismatch     = "event_mismatch"
	OutcomeTeamNotFound      = "team_not_found"
	OutcomeEventNotFound     = "event_not_found"
	OutcomeInvalidRequest    = "invalid_request"
	OutcomeUnreadableImage   = "unreadable_image"
	OutcomeError             = "error"
)

// Recorder owns the service's collectors.
type Recorder struct {
	issued      prometheus.Counter
	redemptions *prometheus.CounterVec
	redeemTime  prometheus.Histogram
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_issued_total",
			Help:      "Credentials minted at team registration.",
		}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Credential redemption attempts by outcome.",
		}, []string{"outcome"}),
		redeemTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redeem_duration_seconds",
			Help:      "Time spent redeeming a credential.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{r.issued, r.redemptions, r.redeemTime} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// CredentialIssued counts one minted credential.
func (r *Recorder) CredentialIssued() {
	if r == nil {
		return
	}
	r.issued.Inc()
}

// Redemption records the outcome and latency of a redeem call.
func (r *Recorder) Redemption(err error, took time.Duration) {
	if r == nil {
		return
	}
	r.redemptions.WithLabelValues(Outcome(err)).Inc()
	r.redeemTime.Observe(took.Seconds())
}

// Outcome maps a redeem error to its label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, attendance.ErrAlreadyRedeemed):
		return OutcomeAlreadyRedeemed
	case errors.Is(err, attendance.ErrInvalidCredential):
		return OutcomeInvalidCredential
	case errors.Is(err, attendance.ErrEventMismatch):
		return OutcomeEventMismatch
	case errors.Is(err, attendance.ErrTeamNotFound):
		return OutcomeTeamNotFound
	case errors.Is(err, attendance.ErrEventNotFound):
		return OutcomeEventNotFound
	case errors.Is(err, attendance.ErrInvalidRequest):
		return OutcomeInvalidRequest
	case errors.Is(err, credential.ErrUnreadableImage):
		return OutcomeUnreadableImage
	default:
		return OutcomeError
	}
}
