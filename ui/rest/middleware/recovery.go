package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	pkgError "github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/error"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/utils"
	"github.com/sirupsen/logrus"
)

// Recovery renders a panic as the JSON envelope. Coded errors keep their
// status and code; anything else is a 500.
func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			err := recover()
			if err == nil {
				return
			}

			coded, ok := err.(pkgError.GenericError)
			if ok {
				logrus.WithFields(logrus.Fields{"path": ctx.Path(), "code": coded.ErrCode()}).Warnf("[HTTP] %s", coded.Error())
			} else {
				logrus.WithField("path", ctx.Path()).Errorf("[HTTP] Panic recovered in middleware: %v", err)
				coded = pkgError.InternalServerError(fmt.Sprintf("%v", err))
			}

			res := utils.ResponseData{
				Status:  coded.StatusCode(),
				Code:    coded.ErrCode(),
				Message: coded.Error(),
			}

			_ = ctx.Status(res.Status).JSON(res)
		}()

		return ctx.Next()
	}
}
