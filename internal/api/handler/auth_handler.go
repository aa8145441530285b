package handler

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/dineflow/internal/api/middleware"
	"github.com/d60-Lab/dineflow/pkg/apperr"
	"github.com/d60-Lab/dineflow/pkg/response"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 后台账号登录，签发带角色的访问令牌
// @Summary 后台登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body loginRequest true "账号密码"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	staff, err := h.staffRepo.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if apperr.IsNotFound(err) {
			response.Unauthorized(c, "invalid username or password")
			return
		}
		response.InternalError(c, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(req.Password)) != nil {
		response.Unauthorized(c, "invalid username or password")
		return
	}

	token, err := middleware.GenerateToken(h.jwtCfg, staff)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token, "role": staff.Role})
}
