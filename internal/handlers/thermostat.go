package handlers

import (
	"context"
	"errors"
	"net/http"

	"touch_thermostat/internal/service"
	"touch_thermostat/internal/transport"

	"github.com/gin-gonic/gin"
)

const (
	statusOK          = "ok"
	statusRefreshed   = "refreshed"
	statusTempSet     = "temperature_set"
	statusModeSet     = "mode_set"
	statusRefreshFail = "stale"

	errInvalidBodyPref = "invalid body: "
	errControllerDown  = "controller unreachable"
	errCommandFailed   = "command failed"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and the current state.
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	resp["state"] = h.services.Thermostat.CurrentState()
	c.JSON(http.StatusOK, resp)
}

// commandStatus maps a controller command error to an HTTP status.
func commandStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotActive):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrInvalidMode):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, transport.ErrConnect), errors.Is(err, transport.ErrSend):
		return http.StatusBadGateway, errControllerDown
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errControllerDown
	default:
		return http.StatusInternalServerError, errCommandFailed
	}
}

type temperatureRequest struct {
	Temperature *int `json:"temperature" binding:"required"`
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// SetTemperatureRequest is an exported model for Swagger docs of the setTemperature payload.
type SetTemperatureRequest struct {
	// Whole degrees Celsius for the active group
	Temperature int `json:"temperature" example:"22"`
}

// SetModeRequest is an exported model for Swagger docs of the setMode payload.
type SetModeRequest struct {
	// Allowed: heat, cool, off
	Mode string `json:"mode" example:"heat"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get thermostat state
// @Description  Last known state; not a live read. Use refresh to poll the controller.
// @Tags         thermostat
// @Produce      json
// @Success      200  {object}  models.ThermostatState
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/thermostat/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Thermostat.CurrentState())
}

// @Summary      Get capabilities
// @Tags         thermostat
// @Produce      json
// @Success      200  {object}  models.Capabilities
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/thermostat/capabilities [get]
// @Security     BearerAuth
func (h *Handler) getCapabilities(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Thermostat.Capabilities())
}

// @Summary      Get controller counters
// @Tags         thermostat
// @Produce      json
// @Success      200  {object}  models.ControllerStats
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/thermostat/stats [get]
// @Security     BearerAuth
func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Thermostat.Stats())
}

// @Summary      Refresh from controller
// @Description  A failed refresh still answers 200 with the previous state and refresh_error set.
// @Tags         thermostat
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, state, refresh_error"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/thermostat/refresh [post]
// @Security     BearerAuth
func (h *Handler) refresh(c *gin.Context) {
	if err := h.services.Thermostat.Refresh(c.Request.Context()); err != nil {
		if h.log != nil {
			h.log.Infow("thermostat_refresh_failed", "err", err)
		}
		h.respondWithStatusAndState(c, statusRefreshFail, gin.H{"refresh_error": err.Error()})
		return
	}
	h.respondWithStatusAndState(c, statusRefreshed, gin.H{})
}

// @Summary      Set target temperature
// @Description  Writes the setpoint of the active group. Rejected with 409 while the system is off.
// @Tags         thermostat
// @Accept       json
// @Produce      json
// @Param        body  body   SetTemperatureRequest  true  "Temperature payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/thermostat/temperature [post]
// @Security     BearerAuth
func (h *Handler) setTemperature(c *gin.Context) {
	var req temperatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	err := h.services.Thermostat.SetTargetTemperature(c.Request.Context(), service.TemperatureParams{Celsius: req.Temperature})
	if err != nil {
		code, msg := commandStatus(err)
		h.logAndJSONError(c, code, msg, "thermostat_set_temperature_failed", err, "temperature", *req.Temperature)
		return
	}
	h.respondWithStatusAndState(c, statusTempSet, gin.H{"temperature": *req.Temperature})
}

// @Summary      Set HVAC mode
// @Tags         thermostat
// @Accept       json
// @Produce      json
// @Param        body  body   SetModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/thermostat/mode [post]
// @Security     BearerAuth
func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Thermostat.SetHvacMode(c.Request.Context(), service.ModeParams{Mode: req.Mode}); err != nil {
		code, msg := commandStatus(err)
		h.logAndJSONError(c, code, msg, "thermostat_set_mode_failed", err, "mode", req.Mode)
		return
	}
	h.respondWithStatusAndState(c, statusModeSet, gin.H{"mode": req.Mode})
}
