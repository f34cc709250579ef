package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harborhealth/caregate/internal/domain/patient"
	"github.com/harborhealth/caregate/internal/middleware"
	"github.com/harborhealth/caregate/internal/service"
)

type AuthHandler struct {
	authSvc *service.AuthService
	userSvc *service.UserService
}

func NewAuthHandler(authSvc *service.AuthService, userSvc *service.UserService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, userSvc: userSvc}
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Email       string `json:"email" binding:"required"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	DateOfBirth string `json:"date_of_birth" binding:"required"` // YYYY-MM-DD
	Gender      string `json:"gender" binding:"required"`
	BloodType   string `json:"blood_type"`
}

// Register is the self-service patient signup. It is the only
// unauthenticated mutation in the API.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		respondError(c, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
		return
	}

	user, err := h.userSvc.RegisterPatient(c.Request.Context(), &service.RegisterPatientCommand{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		Address:     req.Address,
		DateOfBirth: dob,
		Gender:      patient.Gender(req.Gender),
		BloodType:   patient.BloodType(req.BloodType),
	}, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, toUserResponse(user))
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      toUserResponse(result.User),
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	h.authSvc.Logout(c.Request.Context(), ident, middleware.RequestMetaFrom(c))
	respondOK(c, gin.H{"message": "logged out"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.authSvc.ChangePassword(c.Request.Context(), ident, req.CurrentPassword, req.NewPassword, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "password changed"})
}
