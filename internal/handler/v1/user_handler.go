package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/middleware"
	"github.com/harborhealth/caregate/internal/service"
)

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

type createStaffUserRequest struct {
	Username       string `json:"username" binding:"required"`
	Password       string `json:"password" binding:"required"`
	Email          string `json:"email" binding:"required"`
	FirstName      string `json:"first_name" binding:"required"`
	LastName       string `json:"last_name" binding:"required"`
	Role           string `json:"role" binding:"required"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number" binding:"required"`
	Department     string `json:"department"`
}

func (h *UserHandler) CreateStaff(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	var req createStaffUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.svc.CreateStaffUser(c.Request.Context(), ident, &service.CreateStaffUserCommand{
		Username:       req.Username,
		Password:       req.Password,
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Role:           domain.Role(req.Role),
		Specialization: req.Specialization,
		LicenseNumber:  req.LicenseNumber,
		Department:     req.Department,
	}, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toUserResponse(user))
}

func (h *UserHandler) Get(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), ident, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toUserResponse(user))
}

func (h *UserHandler) List(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	q := &service.ListUsersQuery{
		Search:   c.Query("search"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("role"); raw != "" {
		role := domain.Role(raw)
		q.Role = &role
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		q.Active = &active
	}

	page, err := h.svc.ListUsers(c.Request.Context(), ident, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, PagedResponse[UserResponse]{
		Items:      toUserResponses(page.Users),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

type updateProfileRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.svc.UpdateProfile(c.Request.Context(), ident, id, &service.UpdateUserProfileCommand{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
	}, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toUserResponse(user))
}

type changeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *UserHandler) ChangeRole(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req changeRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.svc.ChangeRole(c.Request.Context(), ident, id, domain.Role(req.Role), middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "role updated"})
}

type changeUsernameRequest struct {
	Username string `json:"username" binding:"required"`
}

func (h *UserHandler) ChangeUsername(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req changeUsernameRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.svc.ChangeUsername(c.Request.Context(), ident, id, req.Username, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "username updated"})
}

// Deactivate is the default "delete": the account stops authenticating
// but the row and its clinical history remain.
func (h *UserHandler) Deactivate(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Deactivate(c.Request.Context(), ident, id, middleware.RequestMetaFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) HardDelete(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.HardDelete(c.Request.Context(), ident, id, middleware.RequestMetaFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
