package provider

import (
	"errors"
	"fmt"
)

// ErrCSRF reports a state-parameter mismatch or absence at callback time.
// Always fatal for the attempt, never retried: it means either session loss
// or a forged callback.
var ErrCSRF = errors.New("provider: csrf state mismatch")

// ErrDiscovery reports an OpenID discovery failure at login time. Handled as
// a denial-class outcome, not a server error.
var ErrDiscovery = errors.New("provider: openid discovery failed")

// ThirdPartyFailure reports a non-success response (or transport failure,
// timeouts included) from the upstream provider during the request-token,
// token-exchange, or profile-fetch legs. Carries the upstream status and
// body for diagnosis.
type ThirdPartyFailure struct {
	Provider string
	Op       string // "request_token" | "exchange" | "profile" | "verify"
	Status   int    // 0 on transport error
	Body     string
	Err      error
}

func (e *ThirdPartyFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s failed: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("provider %s: %s returned http %d: %s", e.Provider, e.Op, e.Status, truncate(e.Body, 256))
}

func (e *ThirdPartyFailure) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
