package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/session"
)

type sessionKey struct{}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}

// withSession attaches the browser's session, starting an anonymous one
// when the cookie is missing or the session expired.
func (s *Server) withSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *session.Session
		if c, err := r.Cookie(sessionCookieName); err == nil {
			sess, _ = s.sessions.Get(c.Value)
		}
		if sess == nil {
			sess = s.sessions.Create()
			sess.Resolve(nil)
			s.setSessionCookie(w, sess)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

// requireUser redirects anonymous visitors to the login page and refreshes
// credentials that are about to expire.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if !sess.State().Authenticated() {
			sess.SetValue(nextPageKey, r.URL.RequestURI())
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if !s.refreshIfNeeded(r.Context(), sess) {
			sess.AddNotice(session.NoticeError, "Your session has expired. Please sign in again.")
			sess.SetValue(nextPageKey, r.URL.RequestURI())
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// refreshIfNeeded renews the ID token close to its expiry. It reports false
// when the session ended up signed out.
func (s *Server) refreshIfNeeded(ctx context.Context, sess *session.Session) bool {
	if !sess.NeedsRefresh(s.now(), refreshMargin) {
		return true
	}
	refreshToken := sess.State().User.RefreshToken

	sess.Begin()
	u, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		s.logger.WarnContext(ctx, "Credential refresh failed",
			log.FieldSession, sess.ID(),
			log.FieldError, err)
		sess.Clear()
		return false
	}
	sess.Resolve(&u)
	return true
}

// signIn replaces the visitor's session with a fresh authenticated one so a
// pre-login session id never carries a credential.
func (s *Server) signIn(w http.ResponseWriter, old *session.Session, u identity.User) *session.Session {
	next, _ := old.TakeValue(nextPageKey)
	notices := old.PopNotices()
	s.sessions.Delete(old.ID())
	old.Clear()

	sess := s.sessions.Create()
	sess.Begin()
	sess.Resolve(&u)
	for _, n := range notices {
		sess.AddNotice(n.Kind, n.Message)
	}
	if next != "" {
		sess.SetValue(nextPageKey, next)
	}
	s.setSessionCookie(w, sess)
	s.appMetrics.signIns.Add(1)
	return sess
}

// afterSignIn is the page the user asked for before being sent to login.
func afterSignIn(sess *session.Session) string {
	next, ok := sess.TakeValue(nextPageKey)
	if !ok || !localPath(next) {
		return "/"
	}
	return next
}

// localPath accepts only same-site absolute paths.
func localPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Host == "" && u.Scheme == ""
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.ID(),
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// credential returns the bearer token of the signed-in user.
func credential(r *http.Request) (identity.User, string) {
	st := sessionFrom(r.Context()).State()
	return st.User, st.User.IDToken
}
