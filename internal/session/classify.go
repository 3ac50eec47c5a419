package session

import (
	"net/http"

	"github.com/nzsystems/rezume/internal/profile"
)

// Class is what a response means for the session.
type Class int

const (
	// ClassOK passes the response through to the caller.
	ClassOK Class = iota
	// ClassAnonymous means there is no session yet. Not an error.
	ClassAnonymous
	// ClassSessionExpired is a 401 on an authenticated action.
	ClassSessionExpired
	// ClassServerDown is a 5xx answer.
	ClassServerDown
	// ClassNetworkError means the request never got an answer.
	ClassNetworkError
)

func (c Class) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassAnonymous:
		return "anonymous"
	case ClassSessionExpired:
		return "session-expired"
	case ClassServerDown:
		return "server-down"
	case ClassNetworkError:
		return "network-error"
	default:
		return "unknown"
	}
}

const (
	LoginPath    = "/api/auth/login"
	LogoutPath   = "/api/auth/logout"
	RegisterPath = "/api/auth/register"
	healthPath   = "/"
)

func isIdentityCheck(method, path string) bool {
	return method == http.MethodGet && path == profile.MePath
}

func isLogin(method, path string) bool {
	return method == http.MethodPost && path == LoginPath
}

// Classify decides what an HTTP result means. transportErr is the error of the
// round trip itself, status is ignored when it is set. The checks run in a
// fixed order: transport failure, 401, 5xx, everything else.
func Classify(method, path string, status int, transportErr error) Class {
	identity := isIdentityCheck(method, path)
	login := isLogin(method, path)

	switch {
	case transportErr != nil:
		if identity || login {
			return ClassAnonymous
		}
		return ClassNetworkError
	case status == http.StatusUnauthorized:
		if login {
			return ClassOK
		}
		if identity {
			return ClassAnonymous
		}
		return ClassSessionExpired
	case status >= http.StatusInternalServerError:
		if login {
			return ClassOK
		}
		return ClassServerDown
	default:
		return ClassOK
	}
}
