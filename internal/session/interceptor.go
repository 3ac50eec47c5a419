package session

import (
	"net/http"
)

// Interceptor is one step of the outgoing request pipeline. Steps run in the
// order they were registered, right before the request is sent.
type Interceptor struct {
	Name   string
	Before func(req *http.Request) error
}

// StripAuthorization removes any Authorization header. The backend trusts the
// session cookie only and rejects requests carrying a stale bearer header.
func StripAuthorization() Interceptor {
	return Interceptor{
		Name: "strip-authorization",
		Before: func(req *http.Request) error {
			req.Header.Del("Authorization")
			return nil
		},
	}
}

// Identify sets the user agent and the default Accept header.
func Identify(userAgent string) Interceptor {
	return Interceptor{
		Name: "identify",
		Before: func(req *http.Request) error {
			req.Header.Set("User-Agent", userAgent)
			if req.Header.Get("Accept") == "" {
				req.Header.Set("Accept", contentTypeJSON)
			}
			return nil
		},
	}
}
