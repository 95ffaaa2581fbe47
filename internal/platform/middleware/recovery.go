package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
)

// Recovery turns a handler panic into a 500 with the same body shape as any
// other service error. The request id is echoed so operators can find the
// logged stack.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]

				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", stack).
					Msg("handler panicked")

				body := apperr.Body{Error: "internal server error"}
				if rid != "" {
					body.Details = map[string]interface{}{"request_id": rid}
				}
				err = echo.NewHTTPError(http.StatusInternalServerError, body)
			}()
			return next(c)
		}
	}
}
