package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tubelens/core/internal/middleware"
	"github.com/tubelens/core/internal/models"
	"github.com/tubelens/core/internal/pkg/response"
	sessionpkg "github.com/tubelens/core/internal/pkg/session"
	"gorm.io/gorm"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	a := rg.Group("/auth")

	a.POST("/login", h.login)
	a.POST("/register", h.register)
	a.GET("/registered", h.registered)
	a.GET("/session", middleware.OptionalAuth(h.svc.db), h.session)
	a.POST("/logout", authMW, h.logout)

	a.GET("/sessions", authMW, h.listSessions)
	a.DELETE("/sessions/:id", authMW, h.revokeSession)
	a.DELETE("/sessions", authMW, h.revokeOtherSessions)

	o := a.Group("/owner")
	o.GET("", middleware.OptionalAuth(h.svc.db), h.getOwner)
	o.PATCH("", authMW, h.updateOwner)
	o.PATCH("/password", authMW, h.changePassword)

	tok := a.Group("/token", authMW)
	tok.GET("", h.listTokens)
	tok.POST("", h.createToken)
	tok.DELETE("/:id", h.deleteToken)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, owner, err := h.svc.Login(dto.Username, dto.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, errOwnerNotFound) || errors.Is(err, errWrongPassword) {
			response.UnprocessableEntity(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, loginResponse{Token: token, Owner: toOwnerResponse(owner)})
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	owner, err := h.svc.Register(&dto)
	if err != nil {
		if errors.Is(err, errAlreadyRegistered) {
			response.ForbiddenMsg(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, toOwnerResponse(owner))
}

func (h *Handler) registered(c *gin.Context) {
	response.OK(c, gin.H{"registered": h.svc.IsRegistered()})
}

// session reports who the caller is. Unauthenticated callers get a null
// body rather than an error, so clients can probe without handling 401s.
func (h *Handler) session(c *gin.Context) {
	if !middleware.IsAuthenticated(c) {
		response.OK(c, nil)
		return
	}

	owner, err := h.svc.GetByID(middleware.CurrentOwnerID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if owner == nil {
		response.OK(c, nil)
		return
	}

	out := gin.H{"owner": toOwnerResponse(owner)}
	if sid := middleware.CurrentSessionID(c); sid != "" {
		var s models.OwnerSession
		if err := h.svc.db.Where("id = ? AND owner_id = ?", sid, owner.ID).
			First(&s).Error; err == nil {
			out["session"] = toSessionResponse(&s, sid)
		}
	}
	response.OK(c, out)
}

func (h *Handler) logout(c *gin.Context) {
	// API-token callers carry no session; logout is a no-op for them.
	if sid := middleware.CurrentSessionID(c); sid != "" {
		err := sessionpkg.Revoke(h.svc.db, middleware.CurrentOwnerID(c), sid)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			response.InternalError(c, err)
			return
		}
	}
	response.NoContent(c)
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := sessionpkg.ListActive(h.svc.db, middleware.CurrentOwnerID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}

	currentSID := middleware.CurrentSessionID(c)
	items := make([]sessionResponse, len(sessions))
	for i := range sessions {
		items[i] = toSessionResponse(&sessions[i], currentSID)
	}
	response.OK(c, gin.H{"data": items})
}

func (h *Handler) revokeSession(c *gin.Context) {
	err := sessionpkg.Revoke(h.svc.db, middleware.CurrentOwnerID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundMsg(c, "session not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// revokeOtherSessions signs out every session except the calling one.
func (h *Handler) revokeOtherSessions(c *gin.Context) {
	ownerID := middleware.CurrentOwnerID(c)
	if err := sessionpkg.RevokeAllExcept(h.svc.db, ownerID, middleware.CurrentSessionID(c)); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) getOwner(c *gin.Context) {
	owner, err := h.svc.Owner()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if owner == nil {
		response.NotFound(c)
		return
	}
	if !middleware.IsAuthenticated(c) {
		response.OK(c, toPublicOwnerResponse(owner))
		return
	}
	response.OK(c, toOwnerResponse(owner))
}

func (h *Handler) updateOwner(c *gin.Context) {
	var dto UpdateOwnerDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	owner, err := h.svc.UpdateProfile(middleware.CurrentOwnerID(c), &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if owner == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toOwnerResponse(owner))
}

func (h *Handler) changePassword(c *gin.Context) {
	var dto ChangePasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ownerID := middleware.CurrentOwnerID(c)
	if err := h.svc.ChangePassword(ownerID, dto.OldPassword, dto.NewPassword); err != nil {
		if errors.Is(err, errWrongPassword) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}

	// Tokens minted before the change stay signed; cut them off here. The
	// calling session gets a short grace so the client can re-login.
	sid := middleware.CurrentSessionID(c)
	_ = sessionpkg.RevokeAllExcept(h.svc.db, ownerID, sid)
	sessionpkg.RevokeAfter(h.svc.db, ownerID, sid, 30*time.Second)
	response.NoContent(c)
}

func (h *Handler) listTokens(c *gin.Context) {
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		ok, err := h.svc.VerifyTokenString(token)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		response.OK(c, ok)
		return
	}

	if tokenID := strings.TrimSpace(c.Query("id")); tokenID != "" {
		t, err := h.svc.GetToken(middleware.CurrentOwnerID(c), tokenID)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		if t == nil {
			response.NotFoundMsg(c, errTokenNotFound.Error())
			return
		}
		response.OK(c, toTokenResponse(t))
		return
	}

	tokens, err := h.svc.ListTokens(middleware.CurrentOwnerID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	items := make([]tokenResponse, len(tokens))
	for i := range tokens {
		items[i] = toTokenResponse(&tokens[i])
	}
	response.OK(c, gin.H{"data": items})
}

func (h *Handler) createToken(c *gin.Context) {
	var dto CreateTokenDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	t, err := h.svc.CreateToken(middleware.CurrentOwnerID(c), &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, toTokenResponse(t))
}

func (h *Handler) deleteToken(c *gin.Context) {
	err := h.svc.DeleteToken(middleware.CurrentOwnerID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, errTokenNotFound) {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
