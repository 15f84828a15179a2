package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response bodies follow the shapes the mobile client already parses:
// sends answer {success, message} or {success, sendData}, failures answer
// a bare {error}.

type SendResponse struct {
	Success bool `json:"success"`
	Message any  `json:"message"`
}

type SendMediaResponse struct {
	Success  bool `json:"success"`
	SendData any  `json:"sendData"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func Sent(c echo.Context, message any) error {
	return c.JSON(http.StatusOK, SendResponse{Success: true, Message: message})
}

func MediaSent(c echo.Context, sendData any) error {
	return c.JSON(http.StatusOK, SendMediaResponse{Success: true, SendData: sendData})
}

func Ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data})
}

func BadRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

func Unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or missing API key"})
}

func InternalServerError(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
