package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/identity"
	"fintrack/internal/log"
)

type callerKey struct{}

func withCaller(ctx context.Context, u identity.User) context.Context {
	return context.WithValue(ctx, callerKey{}, u)
}

// callerFrom returns the identity stored by requireAuth.
func callerFrom(ctx context.Context) identity.User {
	u, _ := ctx.Value(callerKey{}).(identity.User)
	return u
}

// bearerToken extracts the token of an "authorization: Bearer <token>"
// header. Header name and scheme are matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requireAuth verifies the bearer token and stores the caller in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized access")
			return
		}

		caller, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			var pe *identity.ProviderError
			if errors.Is(err, identity.ErrInvalidToken) || errors.As(err, &pe) {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized access")
				return
			}
			s.logger.ErrorContext(r.Context(), "Token verification failed",
				log.FieldOperation, log.OpVerify,
				log.FieldError, err,
				"error_type", log.ErrorTypeAuth)
			writeMessage(w, http.StatusServiceUnavailable, "Identity provider unavailable")
			return
		}
		if strings.TrimSpace(caller.Email) == "" {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized access")
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
	})
}

// AuthResponse is the body returned by the /auth endpoints.
type AuthResponse struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PhotoURL     string    `json:"photoURL,omitempty"`
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func authResponse(u identity.User) AuthResponse {
	return AuthResponse{
		UID:          u.UID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		PhotoURL:     u.PhotoURL,
		IDToken:      u.IDToken,
		RefreshToken: u.RefreshToken,
		ExpiresAt:    u.ExpiresAt,
	}
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.provider.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		s.writeAuthError(w, r, log.OpSignUp, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(u))
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeAuthError(w, r, log.OpSignIn, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(u))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.provider.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeAuthError(w, r, log.OpVerify, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(u))
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.provider.SendPasswordReset(r.Context(), req.Email); err != nil {
		s.writeAuthError(w, r, "password_reset", err)
		return
	}
	writeMessage(w, http.StatusOK, "Password reset email sent")
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrWeakPassword):
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrInvalidToken):
		writeMessage(w, http.StatusUnauthorized, identity.ErrInvalidCredentials.Error())
	case errors.Is(err, identity.ErrEmailExists):
		writeMessage(w, http.StatusConflict, identity.ErrEmailExists.Error())
	case errors.Is(err, identity.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, identity.ErrUserNotFound.Error())
	default:
		s.logger.ErrorContext(r.Context(), "Identity provider call failed",
			log.FieldOperation, op,
			log.FieldError, err,
			"error_type", log.ErrorTypeAuth)
		writeMessage(w, http.StatusBadGateway, "Identity provider error")
	}
}
