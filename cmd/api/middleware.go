// cmd/api/middleware.go
// This file contains HTTP middleware used to wrap the router.
// Middleware functions intercept every request before it reaches a handler.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/confuciuslib/clms/internal/data"
)

// contextKey is a private type so our context keys can never collide with
// keys set by other packages.
type contextKey string

const (
	userContextKey      = contextKey("user")
	requestIDContextKey = contextKey("requestID")
)

// contextSetUser returns a copy of the request with the authenticated user
// stored in its context.
func (app *applicationDependencies) contextSetUser(r *http.Request, user *data.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey, user))
}

// contextGetUser retrieves the authenticated user from the request context,
// or nil when the request is anonymous.
func (app *applicationDependencies) contextGetUser(r *http.Request) *data.User {
	user, _ := r.Context().Value(userContextKey).(*data.User)
	return user
}

// contextGetRequestID retrieves the request ID assigned by the requestID
// middleware. Empty only for requests that bypassed the middleware (tests).
func (app *applicationDependencies) contextGetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDContextKey).(string)
	return id
}

// recoverPanic catches any runtime panic that occurs in a downstream handler.
// Without this, a panic would cause the goroutine to terminate and the client's
// connection to be dropped silently. With this middleware the client receives a
// clean 500 Internal Server Error instead.
func (app *applicationDependencies) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// defer runs when the surrounding goroutine unwinds, even after a panic.
		defer func() {
			if err := recover(); err != nil {
				// Tell the HTTP server to close the connection after this response.
				w.Header().Set("Connection", "close")
				// Convert the recovered panic value to an error and send a 500.
				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestID assigns every request a UUID, echoes it in the X-Request-ID
// response header, and stores it in the context so audit entries written
// during the request can be correlated with the access log.
func (app *applicationDependencies) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate resolves the acting user from HTTP Basic credentials and
// stores it in the request context. Requests without credentials proceed as
// anonymous; invalid credentials are rejected immediately. There is no
// session handling: the only purpose here is to attribute mutating actions
// to a known actor in the audit trail.
func (app *applicationDependencies) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := app.models.Users.GetByUsername(username)
		if err != nil {
			switch {
			case errors.Is(err, data.ErrRecordNotFound):
				app.invalidCredentialsResponse(w, r)
			default:
				app.serverErrorResponse(w, r, err)
			}
			return
		}

		match, err := user.Password.Matches(password)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}
		if !match {
			app.invalidCredentialsResponse(w, r)
			return
		}

		next.ServeHTTP(w, app.contextSetUser(r, user))
	})
}

// requireAdmin wraps a handler so only authenticated admin users may reach
// it. Used for audit, backup, report, and user-management endpoints.
func (app *applicationDependencies) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := app.contextGetUser(r)
		if user == nil {
			app.authenticationRequiredResponse(w, r)
			return
		}
		if !user.IsAdmin() {
			app.notPermittedResponse(w, r)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// requireAdminActor is the in-handler variant of requireAdmin, for endpoints
// that also need the admin's identity (waiving a fine records who waived it).
// It writes the error response itself; callers return immediately on !ok.
func (app *applicationDependencies) requireAdminActor(w http.ResponseWriter, r *http.Request) (*data.User, bool) {
	user := app.contextGetUser(r)
	if user == nil {
		app.authenticationRequiredResponse(w, r)
		return nil, false
	}
	if !user.IsAdmin() {
		app.notPermittedResponse(w, r)
		return nil, false
	}
	return user, true
}

// client holds a per-IP rate limiter and the time it was last seen.
// lastSeen lets us evict old entries so the map does not grow forever.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimit implements per-IP token-bucket rate limiting using the
// golang.org/x/time/rate package. Each unique IP gets its own limiter seeded
// from the configured rate and burst. A background goroutine cleans up
// entries that have not been seen in 3 minutes.
func (app *applicationDependencies) rateLimit(next http.Handler) http.Handler {
	// clients maps IP addresses to their individual rate limiters.
	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	// Cleanup goroutine: remove stale IP entries every minute.
	go func() {
		for {
			time.Sleep(time.Minute)
			mu.Lock()
			for ip, c := range clients {
				if time.Since(c.lastSeen) > 3*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.config.limiter.enabled {
			next.ServeHTTP(w, r)
			return
		}

		// Extract just the IP from the RemoteAddr (strips the port).
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}

		mu.Lock()
		// Create a new limiter for this IP if we have not seen it before.
		if _, found := clients[ip]; !found {
			clients[ip] = &client{
				limiter: rate.NewLimiter(rate.Limit(app.config.limiter.rps), app.config.limiter.burst),
			}
		}
		clients[ip].lastSeen = time.Now()

		// Allow() consumes one token; returns false if the bucket is empty.
		if !clients[ip].limiter.Allow() {
			mu.Unlock()
			app.rateLimitExceededResponse(w, r)
			return
		}
		mu.Unlock()

		next.ServeHTTP(w, r)
	})
}
