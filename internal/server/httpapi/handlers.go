package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/todoauth/internal/common"
	"github.com/dmitrijs2005/todoauth/internal/server/services"
)

type registerRequest struct {
	Email           string  `json:"email"`
	Username        string  `json:"username"`
	Password        string  `json:"password"`
	PasswordConfirm *string `json:"password_confirm"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type profileRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type avatarConfirmRequest struct {
	Key string `json:"key"`
}

func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.accounts.Register(r.Context(), services.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		e := errorFor(err)
		if errors.Is(err, common.ErrValidation) {
			e.message = "Registration failed"
		}
		s.writeError(w, r, e, err)
		return
	}

	message := "Registration successful! Please check your email to verify your account."
	if !res.EmailSent {
		message = "Registration successful but failed to send verification email. Please contact support."
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    message,
		"email":      res.Account.Email,
		"email_sent": res.EmailSent,
	})
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		e := errorFor(err)
		switch {
		case errors.Is(err, common.ErrValidation):
			e.message = "Email and password required"
		case errors.Is(err, common.ErrEmailNotVerified):
			e.extra = map[string]any{"email_verified": false}
		}
		s.writeError(w, r, e, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    res.Profile,
		"access":  res.Session.AccessToken,
		"refresh": res.Session.RefreshToken,
	})
}

func (s *HTTPServer) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	pair, err := s.sessions.Refresh(r.Context(), req.Refresh)
	if err != nil {
		e := errorFor(err)
		if errors.Is(err, common.ErrInvalidToken) {
			e.message = "Invalid refresh token"
		}
		s.writeError(w, r, e, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"access": pair.AccessToken})
}

func (s *HTTPServer) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	err := s.verification.Consume(r.Context(), req.Token)
	if err != nil {
		e := errorFor(err)
		if errors.Is(err, common.ErrorNotFound) {
			e.status = http.StatusBadRequest
			e.message = "Invalid or expired token"
		}
		s.writeError(w, r, e, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Email verified successfully"})
}

func (s *HTTPServer) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.verification.Reissue(r.Context(), req.Email)
	if err != nil {
		e := errorFor(err)
		if errors.Is(err, common.ErrorNotFound) {
			e.message = "User with this email does not exist"
		}
		s.writeError(w, r, e, err)
		return
	}

	if !res.Sent {
		writeJSON(w, http.StatusInternalServerError, apiError{
			code:    "internal",
			message: "Failed to send verification email",
		}.body())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Verification email sent successfully"})
}

func (s *HTTPServer) googleOAuth(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.identity.SignIn(r.Context(), req.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    res.Profile,
		"access":  res.Session.AccessToken,
		"refresh": res.Session.RefreshToken,
		"message": "Google authentication successful",
	})
}

func (s *HTTPServer) profile(w http.ResponseWriter, r *http.Request) {
	p, err := s.accounts.Profile(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.accounts.UpdateProfile(r.Context(), accountIDFrom(r.Context()), services.ProfileUpdate{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) avatarUpload(w http.ResponseWriter, r *http.Request) {
	key, url, err := s.accounts.AvatarUploadURL(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "upload_url": url})
}

func (s *HTTPServer) avatarConfirm(w http.ResponseWriter, r *http.Request) {
	var req avatarConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.accounts.ConfirmAvatar(r.Context(), accountIDFrom(r.Context()), req.Key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.writeError(w, r, apiError{status: http.StatusServiceUnavailable, code: "upstream_unavailable", message: "database unavailable"}, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
