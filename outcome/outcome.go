package outcome

import "errors"

// Kind classifies the result of a verification operation.
type Kind uint8

const (
	// Ok means the operation succeeded.
	Ok Kind = iota
	// Invalid covers malformed, forged, already-consumed and unknown inputs alike.
	Invalid
	// Expired means the input was structurally valid but past its deadline,
	// or bound to a credential that has since changed.
	Expired
	// TooManyAttempts means the record exhausted its wrong-guess budget.
	TooManyAttempts
	// Misconfigured means the process secret is missing.
	Misconfigured
	// Unknown is returned by KindOf for errors outside the taxonomy.
	Unknown
)

var (
	// ErrInvalid is returned for malformed, forged, consumed or missing inputs.
	// Callers must render it exactly like "not found".
	ErrInvalid = errors.New("verification invalid")
	// ErrExpired is returned when a token or code is past its deadline.
	ErrExpired = errors.New("verification expired")
	// ErrTooManyAttempts is returned once a record's attempt ceiling is reached.
	ErrTooManyAttempts = errors.New("verification attempts exceeded")
	// ErrMisconfigured is returned when the signing or pepper secret is absent.
	ErrMisconfigured = errors.New("verification secret not configured")
)

// KindOf maps err onto the result taxonomy. A nil error is Ok.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return Ok
	case errors.Is(err, ErrMisconfigured):
		return Misconfigured
	case errors.Is(err, ErrTooManyAttempts):
		return TooManyAttempts
	case errors.Is(err, ErrExpired):
		return Expired
	case errors.Is(err, ErrInvalid):
		return Invalid
	default:
		return Unknown
	}
}

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Invalid:
		return "invalid"
	case Expired:
		return "expired"
	case TooManyAttempts:
		return "too_many_attempts"
	case Misconfigured:
		return "misconfigured"
	default:
		return "unknown"
	}
}
