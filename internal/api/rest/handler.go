package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/custodia-io/custodia/internal/checkpoint"
	"github.com/custodia-io/custodia/internal/domain"
	"github.com/custodia-io/custodia/internal/store"
	"github.com/custodia-io/custodia/internal/sweeper"
)

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// ProcessScan runs the checkpoint protocol for one scanned credential
	// POST /api/v1/checkpoint/scans
	ProcessScan(c *gin.Context)

	// RegisterEquipment registers an equipment and issues its credential
	// POST /api/v1/equipment
	RegisterEquipment(c *gin.Context)

	// GetEquipment retrieves a single equipment by ID
	// GET /api/v1/equipment/:id
	GetEquipment(c *gin.Context)

	// ListEquipment retrieves equipment with pagination
	// GET /api/v1/equipment?limit=<limit>&offset=<offset>
	ListEquipment(c *gin.Context)

	// UpdateEquipment applies administrative edits to an equipment
	// PATCH /api/v1/equipment/:id
	UpdateEquipment(c *gin.Context)

	// RevokeToken deactivates an issued credential
	// POST /api/v1/tokens/:token/revoke
	RevokeToken(c *gin.Context)

	// ListAnomalies retrieves anomaly flags with pagination
	// GET /api/v1/anomalies?unresolved=<bool>&limit=<limit>&offset=<offset>
	ListAnomalies(c *gin.Context)

	// ResolveAnomaly marks an anomaly flag resolved
	// POST /api/v1/anomalies/:id/resolve
	ResolveAnomaly(c *gin.Context)

	// TriggerSweep runs one on-demand anomaly sweep
	// POST /api/v1/anomalies/sweep
	TriggerSweep(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	orchestrator   *checkpoint.Orchestrator
	registrar      *checkpoint.Registrar
	detector       *sweeper.AnomalyDetector
	store          store.Store
	sweepManagerID int64
}

// NewHandler creates a new REST API handler
func NewHandler(orchestrator *checkpoint.Orchestrator, registrar *checkpoint.Registrar, detector *sweeper.AnomalyDetector, st store.Store, sweepManagerID int64) Handler {
	return &handler{
		orchestrator:   orchestrator,
		registrar:      registrar,
		detector:       detector,
		store:          st,
		sweepManagerID: sweepManagerID,
	}
}

// ProcessScan runs the checkpoint protocol for one scanned credential.
// Rejections are still HTTP 200: the terminal displays the outcome either
// way, and only transport or storage failures are errors.
func (h *handler) ProcessScan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.orchestrator.ProcessScan(c.Request.Context(), req.Content, req.OperatorID, req.Notes)
	if err != nil {
		respondInternalError(c, err, "Failed to process scan")
		return
	}

	c.JSON(http.StatusOK, toScanResponse(result))
}

// RegisterEquipment registers an equipment and issues its credential
func (h *handler) RegisterEquipment(c *gin.Context) {
	var req RegisterEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	registration, err := h.registrar.RegisterEquipment(c.Request.Context(), checkpoint.RegisterInput{
		SerialNumber: req.SerialNumber,
		Brand:        req.Brand,
		Image:        req.Image,
		HolderID:     req.HolderID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateSerial):
			respondConflict(c, "Serial number already registered", req.SerialNumber)
		case errors.Is(err, domain.ErrHolderNotFound):
			respondNotFound(c, "Holder not found")
		case errors.Is(err, domain.ErrStorage) || errors.Is(err, domain.ErrCrypto):
			respondInternalError(c, err, "Failed to register equipment",
				zap.String("serial", req.SerialNumber))
		default:
			respondBadRequest(c, err.Error())
		}
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		Equipment: *toEquipmentDTO(registration.Equipment),
		Token:     *toTokenDTO(registration.Token),
	})
}

// GetEquipment retrieves a single equipment by ID
func (h *handler) GetEquipment(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	equipment, err := h.store.GetEquipmentByID(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to get equipment")
		return
	}
	if equipment == nil {
		respondNotFound(c, "Equipment not found")
		return
	}

	c.JSON(http.StatusOK, toEquipmentDTO(equipment))
}

// ListEquipment retrieves equipment with pagination
func (h *handler) ListEquipment(c *gin.Context) {
	params, err := ParsePagination(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	items, total, err := h.store.ListEquipment(c.Request.Context(), params.Limit, params.Offset)
	if err != nil {
		respondInternalError(c, err, "Failed to list equipment")
		return
	}

	response := EquipmentListResponse{
		Items:  make([]EquipmentDTO, 0, len(items)),
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	for _, item := range items {
		response.Items = append(response.Items, *toEquipmentDTO(item))
	}

	c.JSON(http.StatusOK, response)
}

// UpdateEquipment applies administrative edits to an equipment
func (h *handler) UpdateEquipment(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var req UpdateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	equipment, err := h.store.UpdateEquipment(c.Request.Context(), id, store.UpdateEquipmentInput{
		Brand:  req.Brand,
		Image:  req.Image,
		Active: req.Active,
	})
	if err != nil {
		respondInternalError(c, err, "Failed to update equipment")
		return
	}
	if equipment == nil {
		respondNotFound(c, "Equipment not found")
		return
	}

	c.JSON(http.StatusOK, toEquipmentDTO(equipment))
}

// RevokeToken deactivates an issued credential
func (h *handler) RevokeToken(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		respondBadRequest(c, "Token is required")
		return
	}

	record, err := h.registrar.RevokeToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			respondNotFound(c, "Token not found")
			return
		}
		respondInternalError(c, err, "Failed to revoke token")
		return
	}

	c.JSON(http.StatusOK, toTokenDTO(record))
}

// ListAnomalies retrieves anomaly flags with pagination
func (h *handler) ListAnomalies(c *gin.Context) {
	params, err := ParsePagination(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}
	onlyUnresolved, err := parseBoolQuery(c, "unresolved")
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	items, total, err := h.store.ListAnomalies(c.Request.Context(), onlyUnresolved, params.Limit, params.Offset)
	if err != nil {
		respondInternalError(c, err, "Failed to list anomalies")
		return
	}

	response := AnomalyListResponse{
		Items:  make([]AnomalyDTO, 0, len(items)),
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	for _, item := range items {
		response.Items = append(response.Items, *toAnomalyDTO(item))
	}

	c.JSON(http.StatusOK, response)
}

// ResolveAnomaly marks an anomaly flag resolved
func (h *handler) ResolveAnomaly(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var req ResolveAnomalyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	anomaly, err := h.store.ResolveAnomaly(c.Request.Context(), id, req.ManagerID, time.Now())
	if err != nil {
		respondInternalError(c, err, "Failed to resolve anomaly")
		return
	}
	if anomaly == nil {
		respondNotFound(c, "Anomaly not found or already resolved")
		return
	}

	c.JSON(http.StatusOK, toAnomalyDTO(anomaly))
}

// TriggerSweep runs one on-demand anomaly sweep. The body is optional; an
// empty body attributes flags to the configured sweep manager.
func (h *handler) TriggerSweep(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondValidationError(c, err.Error())
		return
	}

	operatorID := req.OperatorID
	if operatorID <= 0 {
		operatorID = h.sweepManagerID
	}

	report, err := h.detector.Sweep(c.Request.Context(), operatorID)
	if err != nil {
		respondInternalError(c, err, "Failed to run anomaly sweep")
		return
	}

	c.JSON(http.StatusOK, toSweepResponse(report))
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
