package response

import (
	"net/http"

	"blogpost-backend/pkg/apperror"
	"blogpost-backend/pkg/logger"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type errorData struct {
	Errors []string `json:"errors"`
}

func Success(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusOK, true, message, data)
}

func Created(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusCreated, true, message, data)
}

// Error maps err onto the error envelope. Unknown errors become a 500 and are
// logged and reported; their details never reach the client.
func Error(c *gin.Context, err error) {
	appErr := apperror.From(err)

	if appErr.Kind == apperror.KindInternal {
		logger.Error("internal error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(appErr.Err),
		)
		if appErr.Err != nil {
			if hub := sentry.GetHubFromContext(c.Request.Context()); hub != nil {
				hub.CaptureException(appErr.Err)
			} else {
				sentry.CaptureException(appErr.Err)
			}
		}
	}
	_ = c.Error(err)

	errs := appErr.Errors
	if errs == nil {
		errs = []string{}
	}
	write(c, appErr.Status(), false, appErr.Message, errorData{Errors: errs})
}

// BindError turns a gin binding failure into a 422 with one message per field.
func BindError(c *gin.Context, err error) {
	Error(c, apperror.Validation(apperror.MsgValidation, ValidationMessages(err)...))
}

func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

func write(c *gin.Context, status int, success bool, message string, data interface{}) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, Envelope{Success: success, Message: message, Data: data})
}
