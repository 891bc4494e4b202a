package http

import (
	"errors"
	"net/http"

	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/session"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()).State().Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, NewPage("login.html", "Login"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()).State().Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	page := NewPage("login.html", "Login")
	if err := parseForm(w, r); err != nil {
		s.render(w, r, page.Status(http.StatusBadRequest).FieldError("", "Invalid form submission"))
		return
	}
	form := ParseCredentialsForm(r.PostForm)
	page.Form(form.Values())

	if errs := form.Errors(); len(errs) > 0 {
		for field, msg := range errs {
			page.FieldError(field, msg)
		}
		s.render(w, r, page.Status(http.StatusUnprocessableEntity))
		return
	}

	sess := sessionFrom(r.Context())
	sess.Begin()
	u, err := s.provider.SignIn(r.Context(), form.Email, form.Password)
	if err != nil {
		sess.Resolve(nil)
		s.appMetrics.failedLogins.Add(1)
		status, msg := s.authFailure(r, log.OpSignIn, err)
		s.render(w, r, page.Status(status).FieldError("", msg))
		return
	}

	sess = s.signIn(w, sess, u)
	sess.AddNotice(session.NoticeSuccess, "Signed in successfully")
	http.Redirect(w, r, afterSignIn(sess), http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()).State().Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, NewPage("register.html", "Register"))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()).State().Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	page := NewPage("register.html", "Register")
	if err := parseForm(w, r); err != nil {
		s.render(w, r, page.Status(http.StatusBadRequest).FieldError("", "Invalid form submission"))
		return
	}
	form := ParseCredentialsForm(r.PostForm)
	page.Form(form.Values())

	errs := form.Errors()
	if form.Name == "" {
		errs["name"] = "Name is required"
	}
	if len(errs) > 0 {
		for field, msg := range errs {
			page.FieldError(field, msg)
		}
		s.render(w, r, page.Status(http.StatusUnprocessableEntity))
		return
	}

	sess := sessionFrom(r.Context())
	sess.Begin()
	u, err := s.provider.SignUp(r.Context(), form.Email, form.Password, form.Name)
	if err != nil {
		sess.Resolve(nil)
		status, msg := s.authFailure(r, log.OpSignUp, err)
		s.render(w, r, page.Status(status).FieldError("", msg))
		return
	}
	if form.PhotoURL != "" {
		if updated, err := s.provider.UpdateProfile(r.Context(), u.IDToken, form.Name, form.PhotoURL); err == nil {
			u = keepTokens(updated, u)
		} else {
			s.logger.WarnContext(r.Context(), "Profile photo not saved after sign up", log.FieldError, err)
		}
	}

	sess = s.signIn(w, sess, u)
	sess.AddNotice(session.NoticeSuccess, "Account created successfully")
	http.Redirect(w, r, afterSignIn(sess), http.StatusSeeOther)
}

func (s *Server) handleResetPage(w http.ResponseWriter, r *http.Request) {
	page := NewPage("reset_password.html", "Reset password")
	page.Form(map[string]string{"email": sanitizeInput(r.URL.Query().Get("email"))})
	s.render(w, r, page)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	page := NewPage("reset_password.html", "Reset password")
	if err := parseForm(w, r); err != nil {
		s.render(w, r, page.Status(http.StatusBadRequest).FieldError("", "Invalid form submission"))
		return
	}
	email := sanitizeInput(r.PostForm.Get("email"))
	page.Form(map[string]string{"email": email})

	if err := identity.ValidateEmail(email); err != nil {
		s.render(w, r, page.Status(http.StatusUnprocessableEntity).FieldError("email", "Please enter a valid email address"))
		return
	}
	if err := s.provider.SendPasswordReset(r.Context(), email); err != nil {
		status, msg := s.authFailure(r, "password_reset", err)
		s.render(w, r, page.Status(status).FieldError("", msg))
		return
	}
	redirectWithNotice(w, r, "/login", session.NoticeSuccess, "Password reset email sent. Check your inbox.")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	s.logger.InfoContext(r.Context(), "User signed out",
		log.FieldOperation, log.OpSignOut,
		log.FieldSession, sess.ID())
	sess.Clear()
	redirectWithNotice(w, r, "/login", session.NoticeSuccess, "Signed out successfully")
}

func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		http.NotFound(w, r)
		return
	}
	state, err := identity.NewState()
	if err != nil {
		redirectWithNotice(w, r, "/login", session.NoticeError, "Google sign-in is unavailable right now.")
		return
	}
	sessionFrom(r.Context()).SetValue(oauthStateKey, state)
	http.Redirect(w, r, s.google.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		http.NotFound(w, r)
		return
	}
	sess := sessionFrom(r.Context())
	q := r.URL.Query()

	expected, ok := sess.TakeValue(oauthStateKey)
	if !ok || expected == "" || q.Get("state") != expected {
		s.logger.WarnContext(r.Context(), "OAuth state mismatch",
			log.FieldOperation, log.OpSignIn,
			log.FieldSession, sess.ID())
		redirectWithNotice(w, r, "/login", session.NoticeError, "Google sign-in failed. Please try again.")
		return
	}
	if e := q.Get("error"); e != "" {
		redirectWithNotice(w, r, "/login", session.NoticeError, "Google sign-in was cancelled.")
		return
	}

	sess.Begin()
	u, err := s.google.Complete(r.Context(), q.Get("code"))
	if err != nil {
		sess.Resolve(nil)
		s.appMetrics.failedLogins.Add(1)
		s.logger.ErrorContext(r.Context(), "Google sign-in failed",
			log.FieldOperation, log.OpSignIn,
			log.FieldError, err,
			"error_type", log.ErrorTypeAuth)
		redirectWithNotice(w, r, "/login", session.NoticeError, "Google sign-in failed. Please try again.")
		return
	}

	sess = s.signIn(w, sess, u)
	sess.AddNotice(session.NoticeSuccess, "Signed in with Google")
	http.Redirect(w, r, afterSignIn(sess), http.StatusSeeOther)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := credential(r)
	page := NewPage("profile.html", "Profile")
	page.Form(map[string]string{"name": user.DisplayName, "photoURL": user.PhotoURL})
	s.render(w, r, page)
}

func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	page := NewPage("profile.html", "Profile")
	if err := parseForm(w, r); err != nil {
		s.render(w, r, page.Status(http.StatusBadRequest).FieldError("", "Invalid form submission"))
		return
	}
	name := sanitizeInput(r.PostForm.Get("name"))
	photo := sanitizeInput(r.PostForm.Get("photoURL"))
	page.Form(map[string]string{"name": name, "photoURL": photo})

	if name == "" {
		page.FieldError("name", "Name is required")
	}
	if photo != "" && !validPhotoURL(photo) {
		page.FieldError("photoURL", "Photo URL must be an http or https address")
	}
	if page.HasErrors() {
		s.render(w, r, page.Status(http.StatusUnprocessableEntity))
		return
	}

	sess := sessionFrom(r.Context())
	current, cred := credential(r)
	u, err := s.provider.UpdateProfile(r.Context(), cred, name, photo)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			sess.Clear()
			redirectWithNotice(w, r, "/login", session.NoticeError, "Your session has expired. Please sign in again.")
			return
		}
		status, msg := s.authFailure(r, log.OpUpdate, err)
		s.render(w, r, page.Status(status).FieldError("", msg))
		return
	}
	sess.Resolve(ptr(keepTokens(u, current)))
	redirectWithNotice(w, r, "/profile", session.NoticeSuccess, "Profile updated successfully")
}

// keepTokens fills credentials missing from a provider answer with the
// current ones.
func keepTokens(u, current identity.User) identity.User {
	if u.IDToken == "" {
		u.IDToken = current.IDToken
		u.ExpiresAt = current.ExpiresAt
	}
	if u.RefreshToken == "" {
		u.RefreshToken = current.RefreshToken
	}
	if u.Email == "" {
		u.Email = current.Email
	}
	if u.UID == "" {
		u.UID = current.UID
	}
	return u
}

func ptr[T any](v T) *T { return &v }

// authFailure maps identity errors onto a status and a form message.
func (s *Server) authFailure(r *http.Request, op string, err error) (int, string) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, identity.ErrEmailExists):
		return http.StatusConflict, "An account with this email already exists"
	case errors.Is(err, identity.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "Password must have an uppercase letter, a lowercase letter and at least 6 characters"
	case errors.Is(err, identity.ErrInvalidEmail):
		return http.StatusUnprocessableEntity, "Please enter a valid email address"
	case errors.Is(err, identity.ErrUserNotFound):
		return http.StatusNotFound, "No account found for this email"
	default:
		s.logger.ErrorContext(r.Context(), "Identity provider call failed",
			log.FieldOperation, op,
			log.FieldError, err,
			"error_type", log.ErrorTypeAuth)
		return http.StatusBadGateway, "The sign-in service is unavailable. Please try again."
	}
}
