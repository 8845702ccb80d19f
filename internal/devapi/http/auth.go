package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/hms/internal/devapi/service"
	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/aussiebroadwan/hms/pkg/httpx"
	"github.com/aussiebroadwan/hms/pkg/slogx"
)

func toAPIUser(u service.User) hmssdk.User {
	return hmssdk.User{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

// LoginHandler serves POST /api/auth/login.
type LoginHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
	Metrics      *Metrics
}

// ServeHTTP handles POST /api/auth/login
//
//	@Summary		Sign in
//	@Description	Checks staff credentials and issues an access token
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		hmssdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	hmssdk.LoginResponse
//	@Failure		400		{object}	httpx.ErrorBody	"Bad Request"
//	@Failure		401		{object}	httpx.ErrorBody	"Invalid credentials"
//	@Failure		429		{object}	httpx.ErrorBody	"Too Many Requests"
//	@Router			/auth/login [post]
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req hmssdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrCodeInvalidRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrCodeInvalidRequest, "username and password are required")
		return
	}

	user, err := h.UserService.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.Metrics.loginFailed()
			log.Info("login rejected", "username", req.Username)
			httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrCodeInvalidCredentials, err.Error())
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrCodeServerError, "internal error")
		return
	}

	token, err := h.TokenService.Issue(user)
	if err != nil {
		log.Error("failed to issue token", "user_id", user.ID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrCodeServerError, "internal error")
		return
	}

	h.Metrics.tokenIssued(issueReasonLogin)
	log.Info("user logged in", "user_id", user.ID, "role", user.Role)
	httpx.WriteJSON(w, http.StatusOK, hmssdk.LoginResponse{Token: token, User: toAPIUser(user)})
}

// MeHandler serves GET /api/auth/me. When the token was rotated the
// replacement is echoed in the body too.
type MeHandler struct {
	UserService *service.UserService
}

// ServeHTTP handles GET /api/auth/me
//
//	@Summary		Current user
//	@Description	Returns the caller. Doubles as the refresh endpoint: a token close to expiry is rotated and
//	@Description	the replacement is returned both in the X-New-Token header and the token field.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	hmssdk.MeResponse
//	@Header			200	{string}	X-New-Token	"Rotated token"
//	@Failure		401	{object}	httpx.ErrorBody	"Unauthorized"
//	@Security		BearerAuth
//	@Router			/auth/me [get]
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrCodeInvalidToken, "missing subject")
		return
	}

	user, err := h.UserService.GetByID(userID)
	if err != nil {
		slogx.FromContext(ctx).Warn("token subject not found", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrCodeInvalidToken, "unknown user")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, hmssdk.MeResponse{
		User:  toAPIUser(user),
		Token: rotatedFromContext(ctx),
	})
}

// LogoutHandler serves POST /api/auth/logout by revoking the token's jti.
type LogoutHandler struct {
	TokenService *service.TokenService
	Metrics      *Metrics
}

// ServeHTTP handles POST /api/auth/logout
//
//	@Summary		Sign out
//	@Description	Revokes the presented token
//	@Tags			Auth
//	@Success		204
//	@Failure		401	{object}	httpx.ErrorBody	"Unauthorized"
//	@Security		BearerAuth
//	@Router			/auth/logout [post]
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrCodeInvalidToken, "missing claims")
		return
	}

	h.TokenService.Revoke(claims)
	h.Metrics.tokenRevoked()
	slogx.FromContext(r.Context()).Info("user logged out", "user_id", claims.Subject)

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
