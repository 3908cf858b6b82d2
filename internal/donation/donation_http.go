package donation

import (
	"net/http"

	"github.com/furfur/central/internal/httphelper"
	"github.com/gin-gonic/gin"
)

type donationHandler struct {
	donations Donations
}

func NewDonationHandler(engine *gin.Engine, authenticator httphelper.Authenticator, donations Donations) {
	handler := donationHandler{donations: donations}

	api := engine.Group("/v1")
	{
		api.GET("/donations", handler.onQuery())
		api.GET("/donations/:id", handler.onGet())
	}

	authedGrp := engine.Group("/v1")
	{
		authed := authedGrp.Use(authenticator.Middleware())
		authed.POST("/donations", handler.onCreate())
		authed.PATCH("/donations/:id", handler.onPatch())
	}
}

func (h donationHandler) onCreate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req, ok := httphelper.BindJSON[CreateRequest](ctx)
		if !ok {
			return
		}

		created, errCreate := h.donations.Create(ctx, req)
		if errCreate != nil {
			httphelper.HandleErr(ctx, errCreate)

			return
		}

		ctx.JSON(http.StatusCreated, created)
	}
}

func (h donationHandler) onPatch() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		donationID, idFound := httphelper.GetInt64Param(ctx, "id")
		if !idFound {
			return
		}

		patch, ok := httphelper.BindJSON[Patch](ctx)
		if !ok {
			return
		}

		donation, errPatch := h.donations.Patch(ctx, donationID, patch)
		if errPatch != nil {
			httphelper.HandleErr(ctx, errPatch)

			return
		}

		ctx.JSON(http.StatusOK, donation)
	}
}

func (h donationHandler) onGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		donationID, idFound := httphelper.GetInt64Param(ctx, "id")
		if !idFound {
			return
		}

		donation, errGet := h.donations.Get(ctx, donationID)
		if errGet != nil {
			httphelper.HandleErr(ctx, errGet)

			return
		}

		ctx.JSON(http.StatusOK, donation)
	}
}

func (h donationHandler) onQuery() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var filter Query
		if !httphelper.BindQuery(ctx, &filter) {
			return
		}

		donations, count, errQuery := h.donations.Query(ctx, filter)
		if errQuery != nil {
			httphelper.HandleErr(ctx, errQuery)

			return
		}

		ctx.JSON(http.StatusOK, httphelper.NewLazyResult(count, donations))
	}
}
