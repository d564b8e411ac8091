package main

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
)

// Downstream services trust these headers; the gateway is the only writer.
const (
	headerActorKind = "X-Actor-Kind"
	headerActorID   = "X-Actor-Id"
)

type upstreams struct {
	scheduling   *url.URL
	notification *url.URL
}

func registerRoutes(mux *http.ServeMux, up upstreams, verifier *auth.Verifier, logger *slog.Logger) {
	scheduling := newProxy(up.scheduling, logger)
	notification := newProxy(up.notification, logger)

	// Doctor directory, availability and open slots are readable anonymously.
	registerProxy(mux, "/api/v1/doctors", withActor(scheduling, verifier, logger, publicReads))
	registerProxy(mux, "/api/v1/appointments", withActor(scheduling, verifier, logger, always))
	registerProxy(mux, "/api/v1/notifications", withActor(notification, verifier, logger, always))
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}

func newProxy(target *url.URL, logger *slog.Logger) http.Handler {
	p := httputil.NewSingleHostReverseProxy(target)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream request failed",
			"err", err,
			"upstream", target.Host,
			"path", r.URL.Path,
			"request_id", httpx.RequestIDFromContext(r.Context()),
		)
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{"error": "unavailable", "message": "upstream unavailable"})
	}
	return p
}

type authPolicy func(r *http.Request) bool

func always(*http.Request) bool { return true }

func publicReads(r *http.Request) bool {
	return r.Method != http.MethodGet && r.Method != http.MethodHead
}

var actorKinds = map[string]bool{"doctor": true, "patient": true, "admin": true}

// withActor replaces any client supplied actor headers with the verified
// token's subject and role. A token is optional only when required reports
// false, and an invalid token is rejected either way.
func withActor(next http.Handler, verifier *auth.Verifier, logger *slog.Logger, required authPolicy) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(headerActorKind)
		r.Header.Del(headerActorID)

		raw, present := bearer(r)
		if !present {
			if required(r) {
				unauthorized(w, "missing or invalid Authorization header")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		claims, err := verifier.Verify(r.Context(), raw)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrExpired) {
				msg = "token expired"
			}
			logger.Info("token rejected", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
			unauthorized(w, msg)
			return
		}
		role := strings.ToLower(claims.Role)
		if !actorKinds[role] {
			httpx.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden", "message": "unsupported role"})
			return
		}

		r.Header.Set(headerActorKind, role)
		r.Header.Set(headerActorID, claims.Subject)
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	token, ok := strings.CutPrefix(h, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="clinicbook"`)
	httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": msg})
}
