package version

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/chuckfinca/image-collector/pkg/context"
	"github.com/chuckfinca/image-collector/pkg/models"
	"github.com/chuckfinca/image-collector/pkg/tracing"
	"github.com/chuckfinca/image-collector/pkg/utils"
	"github.com/chuckfinca/image-collector/pkg/versioning"
)

// Register registers version routes under the images group
func Register(g *echo.Group) {
	g.GET("/:id/versions", ListVersions)
	g.POST("/:id/versions", CreateVersion)
	g.PATCH("/:id/versions/:versionId", UpdateVersion)
	g.DELETE("/:id/versions/:versionId", DeleteVersion)
	g.POST("/:id/versions/:versionId/activate", ActivateVersion)
	g.POST("/:id/deactivate", DeactivateVersion)
}

func sessionController(c echo.Context) (*versioning.Controller, error) {
	ctx, manager, err := ectoinject.GetContext[*versioning.SessionManager](c.Request().Context())
	if err != nil {
		return nil, err
	}
	return manager.Controller(context.GetSessionID(ctx)), nil
}

// ListVersions returns the image's versions and the session's active
// selection, refreshed from the store
func ListVersions(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "version.ListVersions")
	defer span.End()

	imageID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctrl, err := sessionController(c)
	if err != nil {
		return err
	}

	if err := ctrl.Refresh(ctx, imageID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.VersionListResponse{
		Items:           ctrl.Repository().Versions(imageID),
		ActiveVersionID: ctrl.Repository().ActiveVersionID(imageID),
	})
}

// CreateVersion snapshots a new version for the image
func CreateVersion(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "version.CreateVersion")
	defer span.End()

	imageID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.CreateVersionRequest](c)
	if err != nil {
		return err
	}

	ctrl, err := sessionController(c)
	if err != nil {
		return err
	}

	versionID, err := ctrl.CreateVersion(ctx, imageID, req)
	if err != nil {
		return err
	}

	created, _, ok := ctrl.Repository().FindVersion(versionID)
	if !ok {
		return c.JSON(http.StatusCreated, map[string]any{"version_id": versionID})
	}

	return c.JSON(http.StatusCreated, created)
}

// UpdateVersion edits a version's contact fields
func UpdateVersion(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "version.UpdateVersion")
	defer span.End()

	if _, err := paramID(c, "id"); err != nil {
		return err
	}
	versionID, err := paramID(c, "versionId")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.UpdateVersionRequest](c)
	if err != nil {
		return err
	}

	ctrl, err := sessionController(c)
	if err != nil {
		return err
	}

	if err := ctrl.UpdateVersion(ctx, versionID, req.ContactFields); err != nil {
		return err
	}

	updated, _, ok := ctrl.Repository().FindVersion(versionID)
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusOK, updated)
}

// DeleteVersion removes a version. The last remaining version of an image
// cannot be deleted.
func DeleteVersion(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "version.DeleteVersion")
	defer span.End()

	if _, err := paramID(c, "id"); err != nil {
		return err
	}
	versionID, err := paramID(c, "versionId")
	if err != nil {
		return err
	}

	ctrl, err := sessionController(c)
	if err != nil {
		return err
	}

	if err := ctrl.DeleteVersion(ctx, versionID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ActivateVersion makes a version the session's active one for its image
func ActivateVersion(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "version.ActivateVersion")
	defer span.End()

	imageID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	versionID, err := paramID(c, "versionId")
	if err != nil {
		return err
	}

	ctrl, err := sessionController(c)
	if err != nil {
		return err
	}

	if err := ctrl.ActivateVersion(ctx, imageID, versionID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"active_version_id": versionID})
}

// DeactivateVersion clears the session's selection so the image's base
// fields show again
func DeactivateVersion(c echo.Context) error {
	_, span := tracing.StartSpan(c.Request().Context(), "version.DeactivateVersion")
	defer span.End()

	imageID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctrl, err := sessionController(c)
	if err != nil {
		return err
	}

	ctrl.DeactivateVersion(imageID)

	return c.NoContent(http.StatusNoContent)
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
