package ban

import (
	"net/http"

	"github.com/furfur/central/internal/httphelper"
	"github.com/gin-gonic/gin"
)

type banHandler struct {
	bans Bans
}

func NewBanHandler(engine *gin.Engine, authenticator httphelper.Authenticator, bans Bans) {
	handler := banHandler{bans: bans}

	api := engine.Group("/v1")
	{
		api.GET("/bans", handler.onQuery())
		api.GET("/bans/:id", handler.onGet())
		api.GET("/bans/:id/history", handler.onHistory())
	}

	authedGrp := engine.Group("/v1")
	{
		authed := authedGrp.Use(authenticator.Middleware())
		authed.POST("/bans", handler.onCreate())
		authed.PATCH("/bans/:id", handler.onUpdate())
		authed.POST("/bans/:id/unban", handler.onUnban())
	}
}

func (h banHandler) onCreate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req, ok := httphelper.BindJSON[CreateRequest](ctx)
		if !ok {
			return
		}

		ban, errCreate := h.bans.Create(ctx, req)
		if errCreate != nil {
			httphelper.HandleErr(ctx, errCreate)

			return
		}

		ctx.JSON(http.StatusCreated, ban)
	}
}

func (h banHandler) onUpdate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		banID, idFound := httphelper.GetInt64Param(ctx, "id")
		if !idFound {
			return
		}

		req, ok := httphelper.BindJSON[UpdateRequest](ctx)
		if !ok {
			return
		}

		ban, errUpdate := h.bans.Update(ctx, banID, req)
		if errUpdate != nil {
			httphelper.HandleErr(ctx, errUpdate)

			return
		}

		ctx.JSON(http.StatusOK, ban)
	}
}

func (h banHandler) onUnban() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		banID, idFound := httphelper.GetInt64Param(ctx, "id")
		if !idFound {
			return
		}

		req, ok := httphelper.BindJSON[UnbanRequest](ctx)
		if !ok {
			return
		}

		ban, errUnban := h.bans.Unban(ctx, banID, req)
		if errUnban != nil {
			httphelper.HandleErr(ctx, errUnban)

			return
		}

		ctx.JSON(http.StatusOK, ban)
	}
}

func (h banHandler) onGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		banID, idFound := httphelper.GetInt64Param(ctx, "id")
		if !idFound {
			return
		}

		ban, errBan := h.bans.Get(ctx, banID)
		if errBan != nil {
			httphelper.HandleErr(ctx, errBan)

			return
		}

		ctx.JSON(http.StatusOK, ban)
	}
}

func (h banHandler) onHistory() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		banID, idFound := httphelper.GetInt64Param(ctx, "id")
		if !idFound {
			return
		}

		history, errHistory := h.bans.History(ctx, banID)
		if errHistory != nil {
			httphelper.HandleErr(ctx, errHistory)

			return
		}

		ctx.JSON(http.StatusOK, history)
	}
}

func (h banHandler) onQuery() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var filter Query
		if !httphelper.BindQuery(ctx, &filter) {
			return
		}

		bans, count, errQuery := h.bans.Query(ctx, filter)
		if errQuery != nil {
			httphelper.HandleErr(ctx, errQuery)

			return
		}

		ctx.JSON(http.StatusOK, httphelper.NewLazyResult(count, bans))
	}
}
