package users

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	apperrors "github.com/userhub/accounts/internal/errors"
	"github.com/userhub/accounts/internal/i18n"
	"github.com/userhub/accounts/internal/validators"
)

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Birthday string `json:"birthday"`
	Phone    string `json:"phone"`
	Gender   string `json:"gender"`
}

type UpdateUserRequest struct {
	Email    string  `json:"email"`
	FullName string  `json:"fullName"`
	Password string  `json:"password"`
	Birthday *string `json:"birthday"`
	Phone    *string `json:"phone"`
	Gender   *string `json:"gender"`
}

type SetPasswordRequest struct {
	Password string `json:"password"`
}

type UserResponse struct {
	User *User `json:"user"`
}

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// List handles GET /api/users
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	pageParam, limitParam := q.Get("page"), q.Get("limit")

	if err := validators.UserList.Check(validators.Values{
		"page":  pageParam,
		"limit": limitParam,
	}); err != nil {
		return err
	}

	page, _ := strconv.Atoi(pageParam)
	limit, _ := strconv.Atoi(limitParam)

	result, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		return toAppError(err)
	}

	apperrors.WriteSuccess(w, http.StatusOK, result)
	return nil
}

// Create handles POST /api/users
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	var req CreateUserRequest
	if err := apperrors.DecodeJSON(r, &req); err != nil {
		return err
	}

	err := validators.UserCreate.Check(validators.Values{
		"email":    req.Email,
		"password": req.Password,
		"fullName": req.FullName,
		"birthday": req.Birthday,
		"phone":    req.Phone,
	})
	if err != nil {
		return err
	}

	user, err := h.service.Create(r.Context(), CreateInput{
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

	apperrors.WriteSuccess(w, http.StatusCreated, UserResponse{User: user})
	return nil
}

// Get handles GET /api/users/{id}
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		return toAppError(err)
	}

	apperrors.WriteSuccess(w, http.StatusOK, UserResponse{User: user})
	return nil
}

// Update handles PATCH /api/users/{id}
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	var req UpdateUserRequest
	if err := apperrors.DecodeJSON(r, &req); err != nil {
		return err
	}

	values := validators.Values{
		"email":    req.Email,
		"fullName": req.FullName,
		"password": req.Password,
	}
	if req.Birthday != nil {
		values["birthday"] = *req.Birthday
	}
	if req.Phone != nil {
		values["phone"] = *req.Phone
	}
	if err := validators.UserUpdate.Check(values); err != nil {
		return err
	}

	in := UpdateInput{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Phone:    req.Phone,
		Gender:   req.Gender,
	}
	if req.Birthday != nil {
		in.Birthday = validators.OptionalDate(*req.Birthday)
	}

	user, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		return toAppError(err)
	}

	apperrors.WriteSuccess(w, http.StatusOK, UserResponse{User: user})
	return nil
}

// SetPassword handles PATCH /api/users/{id}/password
func (h *Handlers) SetPassword(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	var req SetPasswordRequest
	if err := apperrors.DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := validators.UserPassword.Check(validators.Values{"password": req.Password}); err != nil {
		return err
	}

	if err := h.service.SetPassword(r.Context(), id, req.Password); err != nil {
		return toAppError(err)
	}

	apperrors.WriteMessage(w, r, i18n.KeyPasswordChanged)
	return nil
}

// Delete handles DELETE /api/users/{id}
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		return toAppError(err)
	}

	apperrors.WriteMessage(w, r, i18n.KeyUserDeleted)
	return nil
}

// pathID parses the {id} wildcard. A malformed id cannot name a user, so it
// is reported as not found.
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, apperrors.NotFound().WithCause(err)
	}
	return id, nil
}

func toAppError(err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return apperrors.NotFound()
	case errors.Is(err, ErrEmailExists):
		return apperrors.EmailExists()
	case errors.Is(err, ErrPageOutOfRange):
		return apperrors.InvalidParameter().WithDetails([]validators.FieldError{{
			Field:   "page",
			Rule:    "max",
			Message: `"page" is out of range`,
		}})
	default:
		return apperrors.SystemError(err)
	}
}
