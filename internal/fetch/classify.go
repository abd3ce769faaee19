package fetch

import "errors"

var (
	errRateLimited = errors.New("rate limited")
	errMalformed   = errors.New("malformed response body")
)

// transportError wraps a failed round trip (connection refusal, timeout,
// truncated body). All of these are worth retrying.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "transport: " + e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

// transient reports whether err is worth another attempt. Rate limiting and
// transport failures are transient; malformed bodies, unexpected statuses
// and upstream application errors are not.
func transient(err error) bool {
	if errors.Is(err, errRateLimited) {
		return true
	}
	var te *transportError
	return errors.As(err, &te)
}
