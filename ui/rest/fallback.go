package rest

import (
	"github.com/gofiber/fiber/v2"
	pkgError "github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/error"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/utils"
)

// InitRestNotFound answers every unmatched route with the JSON envelope.
// Register it after all other routes.
func InitRestNotFound(app fiber.Router) {
	app.Use(func(c *fiber.Ctx) error {
		err := pkgError.NotFoundError("route " + c.Method() + " " + c.Path() + " not found")
		return c.Status(err.StatusCode()).JSON(utils.ResponseData{
			Status:  err.StatusCode(),
			Code:    err.ErrCode(),
			Message: err.Error(),
		})
	})
}
