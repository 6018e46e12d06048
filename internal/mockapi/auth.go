package mockapi

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	appLog "civiccircle/internal/log"
	"civiccircle/internal/model"
	"civiccircle/internal/validate"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	acc, ok := s.db.accountByEmail(req.Email)
	if !ok || !checkPassword(req.Password, acc.hash) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := s.IssueToken(acc.user.ID)
	if err != nil {
		appLog.Error("mockapi: failed to sign token", err)
		writeError(w, http.StatusInternalServerError, "Could not create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if !decodeJSON(w, r, &reg) {
		return
	}
	if _, err := s.Register(reg); err != nil {
		var rerr *registrationError
		if errors.As(err, &rerr) {
			writeError(w, rerr.status, rerr.msg)
			return
		}
		appLog.Error("mockapi: registration failed", err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	writeMessage(w, http.StatusCreated, "User registered successfully")
}

type registrationError struct {
	status int
	msg    string
}

func (e *registrationError) Error() string { return e.msg }

// Register creates an account directly, applying the same checks as the
// registration endpoint.
func (s *Server) Register(reg model.Registration) (model.User, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	switch {
	case strings.TrimSpace(reg.FullName) == "":
		return model.User{}, &registrationError{http.StatusBadRequest, "Full name is required"}
	case !validate.Email(reg.Email):
		return model.User{}, &registrationError{http.StatusBadRequest, "Invalid email address"}
	case !validate.Phone(reg.Phone):
		return model.User{}, &registrationError{http.StatusBadRequest, "Invalid phone number"}
	}
	if err := validate.Password(reg.Password); err != nil {
		return model.User{}, &registrationError{http.StatusBadRequest, err.Error()}
	}

	hash, err := s.hashPassword(reg.Password)
	if err != nil {
		return model.User{}, &registrationError{http.StatusBadRequest, err.Error()}
	}
	now := model.FormatTime(s.opts.Now())
	u := model.User{
		ID:        newID(),
		FullName:  reg.FullName,
		Email:     reg.Email,
		Phone:     reg.Phone,
		Address:   reg.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !s.db.addUser(u, hash) {
		return model.User{}, &registrationError{http.StatusConflict, "User already exists"}
	}
	appLog.Info("mockapi: user registered", "id", u.ID, "email", u.Email)
	return u, nil
}

func (s *Server) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := s.db.accountByEmail(req.Email); !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	otp, err := newOTP()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not create OTP")
		return
	}
	s.db.setOTP(req.Email, otp)
	// There is no mail delivery; the code is only logged.
	appLog.Info("mockapi: password reset requested", "email", req.Email, "otp", otp)
	writeMessage(w, http.StatusOK, "OTP sent to your email")
}

func (s *Server) handleValidateOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	acc, ok := s.db.accountByEmail(req.Email)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if req.NewPassword != "" {
		if err := validate.Password(req.NewPassword); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if !s.db.consumeOTP(req.Email, req.OTP) {
		writeError(w, http.StatusBadRequest, "Invalid OTP")
		return
	}
	if req.NewPassword == "" {
		writeMessage(w, http.StatusOK, "OTP verified")
		return
	}
	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.db.setPassword(acc.user.ID, hash)
	writeMessage(w, http.StatusOK, "Password updated")
}

// OTP returns the pending one-time password for email.
func (s *Server) OTP(email string) (string, bool) {
	return s.db.otp(email)
}

func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := s.db.user(currentUser(r))
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.notificationsFor(currentUser(r)))
}
