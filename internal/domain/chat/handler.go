package chat

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
)

const maxMessageLength = 2000

type Request struct {
	Message        string     `json:"message"`
	PatientContext string     `json:"patient_context,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Required, validation.Length(1, maxMessageLength)),
		validation.Field(&r.PatientContext, validation.Length(0, maxMessageLength)),
	)
}

type Response struct {
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type Handler struct {
	responder Responder
	now       func() time.Time
}

func NewHandler(r Responder) *Handler {
	return &Handler{responder: r, now: time.Now}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Chat)
}

// Chat answers a question. The request timestamp is echoed back; when the
// client sends none the server time is used.
func (h *Handler) Chat(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	reply, err := h.responder.Respond(c.Request().Context(), Question{
		Message:        req.Message,
		PatientContext: req.PatientContext,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}

	ts := h.now().UTC()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	return c.JSON(http.StatusOK, Response{Message: req.Message, Response: reply, Timestamp: ts})
}
