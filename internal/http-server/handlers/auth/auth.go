package authhandler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/zanzhit/voice_recorder/internal/domain/errs"
	"github.com/zanzhit/voice_recorder/internal/http-server/handlers"
	"github.com/zanzhit/voice_recorder/internal/lib/api/response"
	"github.com/zanzhit/voice_recorder/internal/lib/sl"
)

type AuthHandler struct {
	log   *slog.Logger
	users Users
}

type Users interface {
	RegisterNewUser(email, password, userType string) (string, error)
	Login(email, password string) (string, error)
}

func New(log *slog.Logger, users Users) *AuthHandler {
	return &AuthHandler{
		log:   log,
		users: users,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	UserType string `json:"user_type" validate:"omitempty,oneof=admin user"`
}

type RegisterResponse struct {
	ID string `json:"id"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) RegisterNewUser(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.RegisterNewUser"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req RegisterRequest
	if !decodeAndValidate(w, r, log, &req) {
		return
	}

	id, err := h.users.RegisterNewUser(req.Email, req.Password, req.UserType)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUserExists):
			handlers.Error(w, r, http.StatusConflict, response.Error("user with this email already exists", ""))
		case errors.Is(err, errs.ErrUserType):
			handlers.Error(w, r, http.StatusBadRequest, response.Error("unknown user_type", ""))
		default:
			log.Error("failed to register user", sl.Err(err))

			handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to register user", middleware.GetReqID(r.Context())))
		}

		return
	}

	log.Info("user registered", slog.String("email", req.Email))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RegisterResponse{ID: id})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req LoginRequest
	if !decodeAndValidate(w, r, log, &req) {
		return
	}

	token, err := h.users.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			handlers.Error(w, r, http.StatusUnauthorized, response.Error("invalid credentials", ""))

			return
		}

		log.Error("failed to login", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to login", middleware.GetReqID(r.Context())))

		return
	}

	render.JSON(w, r, LoginResponse{Token: token})
}

// decodeAndValidate fills req from the body and runs the validator tags.
// Credentials never reach the log, only validation outcomes do.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, log *slog.Logger, req any) bool {
	if err := render.DecodeJSON(r.Body, req); err != nil {
		if errors.Is(err, io.EOF) {
			log.Error("request body is empty")

			handlers.Error(w, r, http.StatusBadRequest, response.Error("empty request", ""))

			return false
		}

		log.Error("failed to decode request body", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to decode request", middleware.GetReqID(r.Context())))

		return false
	}

	if err := validator.New().Struct(req); err != nil {
		validateErr := err.(validator.ValidationErrors)

		log.Error("invalid request", sl.Err(err))

		handlers.Error(w, r, http.StatusBadRequest, response.ValidationError(validateErr))

		return false
	}

	return true
}
