package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/fleetcab/cab-dispatch/internal/api/dto"
	"github.com/fleetcab/cab-dispatch/internal/config"
	"github.com/fleetcab/cab-dispatch/internal/domain/rider"
	"github.com/fleetcab/cab-dispatch/internal/domain/vehicle"
	"github.com/fleetcab/cab-dispatch/internal/realtime"
	"github.com/fleetcab/cab-dispatch/internal/service/dispatch"
	"github.com/fleetcab/cab-dispatch/pkg/errors"
	"github.com/fleetcab/cab-dispatch/pkg/logger"
	"github.com/fleetcab/cab-dispatch/pkg/monitoring"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Coordinator *dispatch.Coordinator
	Vehicles    vehicle.Repository
	Riders      rider.Repository
	Redis       *redis.Client
	Hub         *realtime.Hub
	Logger      *logger.Logger
	NR          *monitoring.NewRelicApp
	Config      *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	coordinator *dispatch.Coordinator,
	vehicles vehicle.Repository,
	riders rider.Repository,
	redisClient *redis.Client,
	hub *realtime.Hub,
	log *logger.Logger,
	nr *monitoring.NewRelicApp,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		Coordinator: coordinator,
		Vehicles:    vehicles,
		Riders:      riders,
		Redis:       redisClient,
		Hub:         hub,
		Logger:      log,
		NR:          nr,
		Config:      cfg,
	}
}

// respondError translates an error into its transport response without
// leaking internals.
func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := errors.GetAppError(err)
	if appErr.Status >= 500 {
		h.Logger.Error("Request failed", logger.Err(err),
			logger.String("path", c.FullPath()))
	}
	c.JSON(appErr.Status, dto.ErrorResponse{Code: appErr.Code, Message: appErr.Message})
}
