package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pittmc/backend/internal/service"
)

// Handler serves the verification and whitelist API.
type Handler struct {
	verification *service.VerificationService
	whitelist    *service.WhitelistService
	progress     *service.ProgressService
	institution  string
	log          *zap.Logger
}

// NewHandler wires the services into a Handler.
func NewHandler(verification *service.VerificationService, whitelist *service.WhitelistService, progress *service.ProgressService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		verification: verification,
		whitelist:    whitelist,
		progress:     progress,
		institution:  verification.Domain(),
		log:          log.Named("http"),
	}
}

// fail writes the response for err. Server-side failures are logged with the
// underlying error; clients only ever see the mapped message.
func (h *Handler) fail(c *gin.Context, err error, overrides routeMessages) {
	reply := classify(err, h.institution, overrides)
	if reply.status >= 500 {
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", reply.status),
			zap.Error(err),
		)
	}
	Error(c, reply.status, reply.message)
}
