// Package auth guards the admin API with HTTP Basic Auth and a per-client
// lockout after repeated failures.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"math"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpungsan/showcase/internal/errors"
)

// Realm is sent in the WWW-Authenticate challenge.
const Realm = "showcase admin"

// Credentials is the single admin account.
type Credentials struct {
	User     string
	Password string
}

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware checks Basic Auth credentials on every request it wraps.
type Middleware struct {
	creds      Credentials
	lockout    *Lockout
	logger     *zap.Logger
	writeError ErrorWriter
}

// New returns a Middleware. An empty password rejects every request.
func New(creds Credentials, lockout *Lockout, logger *zap.Logger, writeError ErrorWriter) *Middleware {
	if lockout == nil {
		lockout = NewLockout(0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("auth")
	if creds.Password == "" {
		logger.Warn("admin password is empty; admin API is disabled")
	}
	return &Middleware{
		creds:      creds,
		lockout:    lockout,
		logger:     logger,
		writeError: writeError,
	}
}

// Wrap returns next guarded by the credential check.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := ClientKey(r)

		if remaining, locked := m.lockout.Locked(client); locked {
			m.lockedOut(w, r, remaining.Seconds())
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || m.creds.Password == "" || !m.matches(user, pass) {
			if ok && m.creds.Password != "" {
				if lockFor, locked := m.lockout.Fail(client); locked {
					m.logger.Warn("client locked out",
						zap.String("client", client), zap.Duration("for", lockFor))
					m.lockedOut(w, r, lockFor.Seconds())
					return
				}
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`", charset="UTF-8"`)
			m.writeError(w, r, errors.NewUnauthorized())
			return
		}

		m.lockout.Succeed(client)
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) lockedOut(w http.ResponseWriter, r *http.Request, seconds float64) {
	retry := int(math.Ceil(seconds))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	m.writeError(w, r, errors.NewLockedOut(retry))
}

// matches compares hashes so neither length nor content leaks through timing.
func (m *Middleware) matches(user, pass string) bool {
	gotUser := sha256.Sum256([]byte(user))
	gotPass := sha256.Sum256([]byte(pass))
	wantUser := sha256.Sum256([]byte(m.creds.User))
	wantPass := sha256.Sum256([]byte(m.creds.Password))
	userOK := subtle.ConstantTimeCompare(gotUser[:], wantUser[:])
	passOK := subtle.ConstantTimeCompare(gotPass[:], wantPass[:])
	return userOK&passOK == 1
}

// ClientKey identifies the caller by remote IP. Forwarding headers are ignored.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
