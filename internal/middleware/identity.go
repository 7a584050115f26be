package middleware

import (
	"net/http"
	"strings"

	"github.com/onnwee/galleria/internal/auth"
)

// AnonIDHeader carries a client-generated anonymous pseudo-identity.
// Used when no Bearer token is present; sufficient for reactions only.
const AnonIDHeader = "X-Anon-ID"

// Identity resolves the viewer for each request and stores it in the
// context. Resolution order:
//
//  1. A valid Bearer token yields an authenticated identity.
//  2. A well-formed X-Anon-ID header yields an anonymous identity.
//  3. Otherwise the request proceeds with no identity; handlers that
//     require one reject it themselves.
//
// An invalid Bearer token does not fall through to anonymous: a client
// that presented credentials should learn they are bad rather than
// silently react under a different identity.
func Identity(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if header := r.Header.Get("Authorization"); header != "" {
				token, ok := strings.CutPrefix(header, "Bearer ")
				if !ok || token == "" {
					http.Error(w, "malformed Authorization header", http.StatusUnauthorized)
					return
				}
				claims, err := jwtService.ValidateToken(token)
				if err != nil {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				ctx = SetViewer(ctx, auth.Identity{
					Subject: claims.Subject,
					Level:   auth.LevelAuthenticated,
				})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if anon := r.Header.Get(AnonIDHeader); anon != "" && auth.ValidAnonToken(anon) {
				ctx = SetViewer(ctx, auth.Identity{
					Subject: auth.AnonSubject(anon),
					Level:   auth.LevelAnonymous,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
