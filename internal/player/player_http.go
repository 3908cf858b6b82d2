package player

import (
	"net/http"

	"github.com/furfur/central/internal/httphelper"
	"github.com/gin-gonic/gin"
)

type playerHandler struct {
	players Players
}

func NewPlayerHandler(engine *gin.Engine, authenticator httphelper.Authenticator, players Players) {
	handler := playerHandler{players: players}

	api := engine.Group("/v1")
	{
		api.GET("/players", handler.onQuery())
		api.GET("/players/id/:id", handler.onGetByID())
		api.GET("/players/ckey/:ckey", handler.onGetByCkey())
		api.GET("/players/discord/:discord_id", handler.onGetByDiscordID())
	}

	authedGrp := engine.Group("/v1")
	{
		authed := authedGrp.Use(authenticator.Middleware())
		authed.POST("/players", handler.onCreate())
	}
}

func (h playerHandler) onCreate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req, ok := httphelper.BindJSON[CreateRequest](ctx)
		if !ok {
			return
		}

		player, errCreate := h.players.Create(ctx, req)
		if errCreate != nil {
			httphelper.HandleErr(ctx, errCreate)

			return
		}

		ctx.JSON(http.StatusCreated, player)
	}
}

func (h playerHandler) onQuery() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var filter PlayerQuery
		if !httphelper.BindQuery(ctx, &filter) {
			return
		}

		players, count, errQuery := h.players.Query(ctx, filter)
		if errQuery != nil {
			httphelper.HandleErr(ctx, errQuery)

			return
		}

		ctx.JSON(http.StatusOK, httphelper.NewLazyResult(count, players))
	}
}

func (h playerHandler) onGetByID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		playerID, idFound := httphelper.GetInt64Param(ctx, "id")
		if !idFound {
			return
		}

		h.respond(ctx, ByID(playerID))
	}
}

func (h playerHandler) onGetByCkey() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ckey, found := httphelper.GetStringParam(ctx, "ckey")
		if !found {
			return
		}

		if !httphelper.ValidCkey(ckey) {
			httphelper.SetError(ctx, httphelper.NewAPIErrorf(http.StatusBadRequest, httphelper.ErrParamInvalid,
				"Invalid ckey: %s", ckey))

			return
		}

		h.respond(ctx, ByCkey(ckey))
	}
}

func (h playerHandler) onGetByDiscordID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		discordID, found := httphelper.GetStringParam(ctx, "discord_id")
		if !found {
			return
		}

		if !httphelper.ValidDiscordID(discordID) {
			httphelper.SetError(ctx, httphelper.NewAPIErrorf(http.StatusBadRequest, httphelper.ErrParamInvalid,
				"Invalid discord id: %s", discordID))

			return
		}

		h.respond(ctx, ByDiscordID(discordID))
	}
}

func (h playerHandler) respond(ctx *gin.Context, ref Ref) {
	player, errPlayer := h.players.Resolve(ctx, ref)
	if errPlayer != nil {
		httphelper.HandleErr(ctx, errPlayer)

		return
	}

	ctx.JSON(http.StatusOK, player)
}
