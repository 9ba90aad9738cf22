package image

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/chuckfinca/image-collector/internal/services/extraction"
	"github.com/chuckfinca/image-collector/internal/services/images"
	"github.com/chuckfinca/image-collector/pkg/context"
	"github.com/chuckfinca/image-collector/pkg/models"
	"github.com/chuckfinca/image-collector/pkg/tracing"
	"github.com/chuckfinca/image-collector/pkg/utils"
	"github.com/chuckfinca/image-collector/pkg/versioning"
)

// Register registers image routes
func Register(g *echo.Group) {
	g.GET("", ListImages)
	g.POST("", UploadImage)
	g.POST("/import", ImportImage)
	g.GET("/:id", GetImage)
	g.GET("/:id/file", GetImageFile)
	g.GET("/:id/record", GetEffectiveRecord)
	g.PATCH("/:id", UpdateImage)
	g.DELETE("/:id", DeleteImage)
	g.POST("/:id/extract", ExtractContact)
}

// ImportImageRequest asks the server to download an image by URL
type ImportImageRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// ListImages lists stored images, newest first
func ListImages(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "image.ListImages")
	defer span.End()

	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	ctx, service, err := ectoinject.GetContext[*images.Service](ctx)
	if err != nil {
		return err
	}

	page, err := service.ListImages(ctx, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, page)
}

// UploadImage stores an uploaded image file
func UploadImage(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "image.UploadImage")
	defer span.End()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "missing file upload")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "unreadable file upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, images.MaxImageSize+1))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "unreadable file upload")
	}

	ctx, service, err := ectoinject.GetContext[*images.Service](ctx)
	if err != nil {
		return err
	}

	img, err := service.AddImage(ctx, fileHeader.Filename, data)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, img)
}

// ImportImage downloads an image from a URL and stores it
func ImportImage(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "image.ImportImage")
	defer span.End()

	req, err := utils.BindRequest[ImportImageRequest](c)
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*images.Service](ctx)
	if err != nil {
		return err
	}

	img, err := service.AddImageFromURL(ctx, req.URL)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, img)
}

// GetImage returns one image's record
func GetImage(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "image.GetImage")
	defer span.End()

	imageID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*images.Service](ctx)
	if err != nil {
		return err
	}

	img, err := service.GetImage(ctx, imageID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, img)
}

// GetImageFile serves the image binary
func GetImageFile(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "image.GetImageFile")
	defer span.End()

	imageID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*images.Service](ctx)
	if err != nil {
		return err
	}

	img, err := service.GetImage(ctx, imageID)
	if err != nil {
		return err
	}

	data, err := service.ReadImageData(ctx, img)
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(filepath.Ext(img.Filename))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return c.Blob(http.StatusOK, contentType, data)
}

// GetEffectiveRecord returns the image's fields with the session's active
// version overlaid on top
func GetEffectiveRecord(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "image.GetEffectiveRecord")
	defer span.End()

	imageID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*images.Service](ctx)
	if err != nil {
		return err
	}

	img, err := service.GetImage(ctx, imageID)
	if err != nil {
		return err
	}

	ctx, manager, err := ectoinject.GetContext[*versioning.SessionManager](ctx)
	if err != nil {
		return err
	}

	ctrl := manager.Controller(context.GetSessionID(ctx))
	if err := ctrl.Refresh(ctx, imageID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ctrl.EffectiveRecord(*img))
}

// UpdateImage edits the image's base contact fields
func UpdateImage(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "image.UpdateImage")
	defer span.End()

	imageID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.ContactFields](c)
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*images.Service](ctx)
	if err != nil {
		return err
	}

	changed, err := service.UpdateImage(ctx, imageID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"changed_fields": changed})
}

// DeleteImage removes the image, its file, and all its versions
func DeleteImage(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "image.DeleteImage")
	defer span.End()

	imageID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*images.Service](ctx)
	if err != nil {
		return err
	}

	if err := service.DeleteImage(ctx, imageID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ExtractContact runs the extraction pipeline for the image and snapshots
// the result as a new version in the caller's session
func ExtractContact(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "image.ExtractContact")
	defer span.End()

	imageID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx, manager, err := ectoinject.GetContext[*versioning.SessionManager](ctx)
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*extraction.Service](ctx)
	if err != nil {
		return err
	}

	ctrl := manager.Controller(context.GetSessionID(ctx))

	versionID, err := service.ExtractContact(ctx, ctrl, imageID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, map[string]any{"version_id": versionID})
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
