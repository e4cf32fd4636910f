package auth

import (
	"errors"
	"net/http"

	apperrors "github.com/userhub/accounts/internal/errors"
	"github.com/userhub/accounts/internal/i18n"
	"github.com/userhub/accounts/internal/validators"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Birthday string `json:"birthday"`
	Phone    string `json:"phone"`
	Gender   string `json:"gender"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest revokes RefreshToken, or every session of the user when All
// is set.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
	All          bool   `json:"all"`
}

type UpdateProfileRequest struct {
	FullName *string `json:"fullName"`
	Birthday *string `json:"birthday"`
	Phone    *string `json:"phone"`
	Gender   *string `json:"gender"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type ProfileResponse struct {
	Profile *Profile `json:"profile"`
}

type Handlers struct {
	authService *Service
}

func NewHandlers(authService *Service) *Handlers {
	return &Handlers{authService: authService}
}

// Register handles POST /api/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) error {
	var req RegisterRequest
	if err := apperrors.DecodeJSON(r, &req); err != nil {
		return err
	}

	err := validators.Register.Check(validators.Values{
		"email":    req.Email,
		"password": req.Password,
		"birthday": req.Birthday,
		"phone":    req.Phone,
	})
	if err != nil {
		return err
	}

	result, err := h.authService.Register(r.Context(), RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Birthday: validators.OptionalDate(req.Birthday),
		Phone:    req.Phone,
		Gender:   req.Gender,
	})
	if err != nil {
		return toAppError(err)
	}

	apperrors.WriteSuccess(w, http.StatusCreated, result)
	return nil
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := apperrors.DecodeJSON(r, &req); err != nil {
		return err
	}

	err := validators.Login.Check(validators.Values{
		"email":    req.Email,
		"password": req.Password,
	})
	if err != nil {
		return err
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return toAppError(err)
	}

	apperrors.WriteSuccess(w, http.StatusOK, result)
	return nil
}

// Refresh handles POST /api/auth/refresh
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) error {
	userCtx := GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized()
	}

	var req RefreshRequest
	if err := apperrors.DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := validators.Refresh.Check(validators.Values{"refreshToken": req.RefreshToken}); err != nil {
		return err
	}

	result, err := h.authService.Refresh(r.Context(), userCtx.UserID, req.RefreshToken)
	if err != nil {
		return toAppError(err)
	}

	apperrors.WriteSuccess(w, http.StatusOK, result)
	return nil
}

// Logout handles POST /api/auth/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) error {
	userCtx := GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized()
	}

	var req LogoutRequest
	if err := apperrors.DecodeJSON(r, &req); err != nil {
		return err
	}

	if req.All {
		err := h.authService.LogoutAll(r.Context(), userCtx.UserID)
		if err != nil {
			return toAppError(err)
		}
	} else {
		if err := validators.Refresh.Check(validators.Values{"refreshToken": req.RefreshToken}); err != nil {
			return err
		}
		if err := h.authService.Logout(r.Context(), userCtx.UserID, req.RefreshToken); err != nil {
			return toAppError(err)
		}
	}

	apperrors.WriteMessage(w, r, i18n.KeyLoggedOut)
	return nil
}

// GetProfile handles GET /api/auth/profile
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) error {
	userCtx := GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized()
	}

	profile, err := h.authService.GetProfile(r.Context(), userCtx.UserID)
	if err != nil {
		return toAppError(err)
	}

	apperrors.WriteSuccess(w, http.StatusOK, ProfileResponse{Profile: profile})
	return nil
}

// UpdateProfile handles PATCH /api/auth/profile
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) error {
	userCtx := GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized()
	}

	var req UpdateProfileRequest
	if err := apperrors.DecodeJSON(r, &req); err != nil {
		return err
	}

	values := validators.Values{}
	if req.Birthday != nil {
		values["birthday"] = *req.Birthday
	}
	if req.Phone != nil {
		values["phone"] = *req.Phone
	}
	if err := validators.ProfileUpdate.Check(values); err != nil {
		return err
	}

	update := ProfileUpdate{
		FullName: req.FullName,
		Phone:    req.Phone,
		Gender:   req.Gender,
	}
	if req.Birthday != nil {
		update.Birthday = validators.OptionalDate(*req.Birthday)
	}

	profile, err := h.authService.UpdateProfile(r.Context(), userCtx.UserID, update)
	if err != nil {
		return toAppError(err)
	}

	apperrors.WriteSuccess(w, http.StatusOK, ProfileResponse{Profile: profile})
	return nil
}

// ChangePassword handles PATCH /api/auth/password
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	userCtx := GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized()
	}

	var req ChangePasswordRequest
	if err := apperrors.DecodeJSON(r, &req); err != nil {
		return err
	}

	err := validators.ChangePassword.Check(validators.Values{
		"oldPassword": req.OldPassword,
		"newPassword": req.NewPassword,
	})
	if err != nil {
		return err
	}

	if err := h.authService.ChangePassword(r.Context(), userCtx.UserID, req.OldPassword, req.NewPassword); err != nil {
		return toAppError(err)
	}

	apperrors.WriteMessage(w, r, i18n.KeyPasswordChanged)
	return nil
}

// toAppError maps service errors onto response codes. Anything unrecognised
// becomes a system error and is logged by the error handler.
func toAppError(err error) error {
	switch {
	case errors.Is(err, ErrEmailExists):
		return apperrors.EmailExists()
	case errors.Is(err, ErrInvalidCredentials):
		return apperrors.InvalidCredentials()
	case errors.Is(err, ErrUnauthorized):
		return apperrors.Unauthorized()
	case errors.Is(err, ErrOldPasswordIncorrect):
		return apperrors.OldPasswordIncorrect()
	case errors.Is(err, ErrUserNotFound):
		return apperrors.NotFound()
	default:
		return apperrors.SystemError(err)
	}
}
