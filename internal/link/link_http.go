package link

import (
	"net/http"

	"github.com/furfur/central/internal/httphelper"
	"github.com/gin-gonic/gin"
)

type linkHandler struct {
	links Links
}

// NewLinkHandler registers the link routes. The browser facing login and callback routes are rate
// limited per client ip by limiter.
func NewLinkHandler(engine *gin.Engine, authenticator httphelper.Authenticator, links Links, limiter *httphelper.IPRateLimiter) {
	handler := linkHandler{links: links}

	publicGrp := engine.Group("/v1")
	{
		public := publicGrp.Use(limiter.Middleware())
		public.GET("/link/login", handler.onLogin())
		public.GET("/link/callback", handler.onCallback())
	}

	authedGrp := engine.Group("/v1")
	{
		authed := authedGrp.Use(authenticator.Middleware())
		authed.POST("/link/token", handler.onIssueToken())
	}
}

func (h linkHandler) onIssueToken() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ckey, ok := httphelper.GetStringQuery(ctx, "ckey")
		if !ok {
			return
		}

		if !httphelper.ValidCkey(ckey) {
			httphelper.SetError(ctx, httphelper.NewAPIErrorf(http.StatusBadRequest, httphelper.ErrParamInvalid,
				"Invalid ckey: %s", ckey))

			return
		}

		token, errToken := h.links.IssueToken(ctx, ckey)
		if errToken != nil {
			httphelper.HandleErr(ctx, errToken)

			return
		}

		ctx.JSON(http.StatusOK, token)
	}
}

func (h linkHandler) onLogin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := httphelper.GetStringQuery(ctx, "token")
		if !ok {
			return
		}

		loginURL, errURL := h.links.LoginURL(ctx, token)
		if errURL != nil {
			httphelper.HandleErr(ctx, errURL)

			return
		}

		ctx.Redirect(http.StatusTemporaryRedirect, loginURL)
	}
}

func (h linkHandler) onCallback() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		code, ok := httphelper.GetStringQuery(ctx, "code")
		if !ok {
			return
		}

		state, ok := httphelper.GetStringQuery(ctx, "state")
		if !ok {
			return
		}

		linked, errLink := h.links.Callback(ctx, code, state)
		if errLink != nil {
			httphelper.HandleErr(ctx, errLink)

			return
		}

		ctx.JSON(http.StatusOK, linked)
	}
}
