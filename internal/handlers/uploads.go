package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/logger"
)

const maxUploadRequest = 32 << 20

// UploadImages accepts one or more "images" files and returns their public paths.
func UploadImages(uploads Uploads, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /uploads/images"
		defer handlePanic(c, log, route)

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadRequest)
		form, err := c.MultipartForm()
		if err != nil {
			respondError(c, log, route, apperr.BadRequest("multipart/form-data required"))
			return
		}
		files := form.File["images"]
		if len(files) == 0 {
			respondError(c, log, route, apperr.BadRequest("images is required"))
			return
		}

		paths := make([]string, 0, len(files))
		for _, file := range files {
			p, err := uploads.Save(file)
			if err != nil {
				for _, saved := range paths {
					_ = uploads.Delete(saved)
				}
				respondError(c, log, route, err)
				return
			}
			paths = append(paths, p)
		}

		log.Info("upload: images stored", logger.Int("count", len(paths)))
		c.JSON(http.StatusCreated, gin.H{"paths": paths})
	}
}
