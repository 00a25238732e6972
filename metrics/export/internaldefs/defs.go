package internaldefs

import (
	"strconv"

	goVerify "github.com/MrEthical07/goVerify"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goVerify.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goVerify.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goVerify.MetricCodeRequest, Name: "goverify_code_request_total", Help: "Code requests received."},
	{ID: goVerify.MetricCodeRateLimited, Name: "goverify_code_rate_limited_total", Help: "Code requests refused by the send gate or IP throttle."},
	{ID: goVerify.MetricCodeIssued, Name: "goverify_code_issued_total", Help: "Codes issued and handed to the sender."},
	{ID: goVerify.MetricCodeDeliveryFailure, Name: "goverify_code_delivery_failure_total", Help: "Codes the sender failed to deliver."},
	{ID: goVerify.MetricCodeVerifySuccess, Name: "goverify_code_verify_success_total", Help: "Correct code submissions."},
	{ID: goVerify.MetricCodeVerifyInvalid, Name: "goverify_code_verify_invalid_total", Help: "Code submissions rejected as invalid."},
	{ID: goVerify.MetricCodeVerifyExpired, Name: "goverify_code_verify_expired_total", Help: "Code submissions for expired records."},
	{ID: goVerify.MetricCodeVerifyLocked, Name: "goverify_code_verify_locked_total", Help: "Code submissions for records past the attempt ceiling."},
	{ID: goVerify.MetricResetSessionIssued, Name: "goverify_reset_session_issued_total", Help: "Reset session tokens issued."},
	{ID: goVerify.MetricResetConsumeSuccess, Name: "goverify_reset_consume_success_total", Help: "Credentials replaced through a reset session."},
	{ID: goVerify.MetricResetConsumeFailure, Name: "goverify_reset_consume_failure_total", Help: "Rejected reset session consumptions."},
	{ID: goVerify.MetricSignInSuccess, Name: "goverify_signin_success_total", Help: "Completed code sign-ins."},
	{ID: goVerify.MetricSignInFailure, Name: "goverify_signin_failure_total", Help: "Rejected code sign-ins."},
	{ID: goVerify.MetricResetLinkIssued, Name: "goverify_reset_link_issued_total", Help: "Reset links issued and handed to the sender."},
	{ID: goVerify.MetricResetLinkRateLimited, Name: "goverify_reset_link_rate_limited_total", Help: "Reset link requests refused by the send gate."},
	{ID: goVerify.MetricResetLinkConfirmSuccess, Name: "goverify_reset_link_confirm_success_total", Help: "Credentials replaced through a reset link."},
	{ID: goVerify.MetricResetLinkConfirmFailure, Name: "goverify_reset_link_confirm_failure_total", Help: "Rejected reset link confirmations."},
	{ID: goVerify.MetricMisconfigured, Name: "goverify_misconfigured_total", Help: "Calls rejected because no secret is configured."},
	{ID: goVerify.MetricRateLimitHit, Name: "goverify_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

var HistogramDefs = []HistogramDef{
	{ID: goVerify.MetricSubmitLatency, Name: "goverify_submit_latency_seconds", Help: "Code verification latency."},
}

// AuditDroppedName is the counter exported for dispatcher drops.
const (
	AuditDroppedName = "goverify_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramBounds returns the finite bucket bounds in seconds, derived
// from [goVerify.HistogramBounds].
func HistogramBounds() []float64 {
	bounds := goVerify.HistogramBounds()
	out := make([]float64, len(bounds))
	for i, b := range bounds {
		out[i] = b.Seconds()
	}
	return out
}

// BucketLabels returns the "le" label of every bucket, finite bounds first
// and "+Inf" last.
func BucketLabels() []string {
	bounds := HistogramBounds()
	out := make([]string, 0, len(bounds)+1)
	for _, b := range bounds {
		out = append(out, strconv.FormatFloat(b, 'g', -1, 64))
	}
	return append(out, "+Inf")
}

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
