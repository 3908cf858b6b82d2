package whitelist

import (
	"net/http"

	"github.com/furfur/central/internal/httphelper"
	"github.com/gin-gonic/gin"
)

type whitelistHandler struct {
	whitelists Whitelists
}

func NewWhitelistHandler(engine *gin.Engine, authenticator httphelper.Authenticator, whitelists Whitelists) {
	handler := whitelistHandler{whitelists: whitelists}

	api := engine.Group("/v1")
	{
		api.GET("/whitelists", handler.onQueryGrants())
		api.GET("/whitelists/ckeys", handler.onActiveCkeys())
		api.GET("/whitelists/discord_ids", handler.onActiveDiscordIDs())
		api.GET("/whitelists/:id", handler.onGetGrant())
		api.GET("/whitelist_bans", handler.onQueryBans())
		api.GET("/whitelist_bans/:id", handler.onGetBan())
	}

	authedGrp := engine.Group("/v1")
	{
		authed := authedGrp.Use(authenticator.Middleware())
		authed.POST("/whitelists", handler.onCreateGrant())
		authed.PATCH("/whitelists/:id", handler.onPatchGrant())
		authed.POST("/whitelist_bans", handler.onCreateBan())
		authed.PATCH("/whitelist_bans/:id", handler.onPatchBan())
	}
}

func (h whitelistHandler) onCreateGrant() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ignoreBans, ok := httphelper.GetBoolQuery(ctx, "ignore_bans", false)
		if !ok {
			return
		}

		req, ok := httphelper.BindJSON[GrantRequest](ctx)
		if !ok {
			return
		}

		grant, errGrant := h.whitelists.Grant(ctx, req, ignoreBans)
		if errGrant != nil {
			httphelper.HandleErr(ctx, errGrant)

			return
		}

		ctx.JSON(http.StatusCreated, grant)
	}
}

func (h whitelistHandler) onCreateBan() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		invalidate, ok := httphelper.GetBoolQuery(ctx, "invalidate_wls", true)
		if !ok {
			return
		}

		req, ok := httphelper.BindJSON[BanRequest](ctx)
		if !ok {
			return
		}

		ban, errBan := h.whitelists.Ban(ctx, req, invalidate)
		if errBan != nil {
			httphelper.HandleErr(ctx, errBan)

			return
		}

		ctx.JSON(http.StatusCreated, ban)
	}
}

func (h whitelistHandler) onPatchGrant() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		grantID, idFound := httphelper.GetInt64Param(ctx, "id")
		if !idFound {
			return
		}

		patch, ok := httphelper.BindJSON[GrantPatch](ctx)
		if !ok {
			return
		}

		grant, errPatch := h.whitelists.PatchGrant(ctx, grantID, patch)
		if errPatch != nil {
			httphelper.HandleErr(ctx, errPatch)

			return
		}

		ctx.JSON(http.StatusOK, grant)
	}
}

func (h whitelistHandler) onPatchBan() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		banID, idFound := httphelper.GetInt64Param(ctx, "id")
		if !idFound {
			return
		}

		patch, ok := httphelper.BindJSON[BanPatch](ctx)
		if !ok {
			return
		}

		ban, errPatch := h.whitelists.PatchBan(ctx, banID, patch)
		if errPatch != nil {
			httphelper.HandleErr(ctx, errPatch)

			return
		}

		ctx.JSON(http.StatusOK, ban)
	}
}

func (h whitelistHandler) onGetGrant() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		grantID, idFound := httphelper.GetInt64Param(ctx, "id")
		if !idFound {
			return
		}

		grant, errGrant := h.whitelists.GetGrant(ctx, grantID)
		if errGrant != nil {
			httphelper.HandleErr(ctx, errGrant)

			return
		}

		ctx.JSON(http.StatusOK, grant)
	}
}

func (h whitelistHandler) onGetBan() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		banID, idFound := httphelper.GetInt64Param(ctx, "id")
		if !idFound {
			return
		}

		ban, errBan := h.whitelists.GetBan(ctx, banID)
		if errBan != nil {
			httphelper.HandleErr(ctx, errBan)

			return
		}

		ctx.JSON(http.StatusOK, ban)
	}
}

func (h whitelistHandler) onQueryGrants() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var filter Query
		if !httphelper.BindQuery(ctx, &filter) {
			return
		}

		grants, count, errQuery := h.whitelists.QueryGrants(ctx, filter)
		if errQuery != nil {
			httphelper.HandleErr(ctx, errQuery)

			return
		}

		ctx.JSON(http.StatusOK, httphelper.NewLazyResult(count, grants))
	}
}

func (h whitelistHandler) onQueryBans() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var filter Query
		if !httphelper.BindQuery(ctx, &filter) {
			return
		}

		bans, count, errQuery := h.whitelists.QueryBans(ctx, filter)
		if errQuery != nil {
			httphelper.HandleErr(ctx, errQuery)

			return
		}

		ctx.JSON(http.StatusOK, httphelper.NewLazyResult(count, bans))
	}
}

func (h whitelistHandler) onActiveCkeys() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ckeys, errCkeys := h.whitelists.ActiveCkeys(ctx, ctx.Query("server_type"))
		if errCkeys != nil {
			httphelper.HandleErr(ctx, errCkeys)

			return
		}

		ctx.JSON(http.StatusOK, ckeys)
	}
}

func (h whitelistHandler) onActiveDiscordIDs() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		discordIDs, errDiscordIDs := h.whitelists.ActiveDiscordIDs(ctx, ctx.Query("server_type"))
		if errDiscordIDs != nil {
			httphelper.HandleErr(ctx, errDiscordIDs)

			return
		}

		ctx.JSON(http.StatusOK, discordIDs)
	}
}
