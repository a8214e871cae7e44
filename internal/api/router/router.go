package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/thumbnail-proxy/internal/api/handlers/image"
)

func Setup(h *image.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	r.GET("/healthz", h.Health)
	r.GET("/image/:spec/*url", h.Get) // rendering an image

	api := r.Group("/api")

	api.POST("/prewarm", h.Prewarm)       // warming the source cache
	api.GET("/renders/:id", h.GetRender) // getting render metadata by id

	return r
}
