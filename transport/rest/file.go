package rest

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/socialpin/pin"
)

// FileController serves stored binary assets at /file/:id, the path the
// avatar pub/sub messages reference.
type FileController struct {
	Profiles pin.ProfileStore
}

func (c *FileController) InstallTo(app *fiber.App) {
	app.Get("/file/:id", c.serveFile)
}

func (c *FileController) serveFile(ctx *fiber.Ctx) error {
	idStr := ctx.Params("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid file id")
	}

	avatar, err := c.Profiles.AvatarById(ctx.Context(), pin.AvatarId(id))
	if err != nil {
		if errors.Is(err, pin.ErrAvatarNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "file not found")
		}
		return fmt.Errorf("get avatar by id: %w", err)
	}

	ctx.Set(fiber.HeaderContentType, avatar.Mime)
	return ctx.Send(avatar.Content)
}
