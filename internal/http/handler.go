package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/freight-booking/internal/http/middleware"
	"github.com/nurpe/freight-booking/internal/model"
	"github.com/nurpe/freight-booking/internal/service"
	"github.com/nurpe/freight-booking/internal/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ShipmentService interface {
	Create(ctx context.Context, input service.CreateShipmentInput) (*model.Shipment, error)
	Get(ctx context.Context, code string) (*service.ShipmentView, error)
}

type BookingService interface {
	BookAndDocument(ctx context.Context, code string, actor model.Principal) (*service.BookingResult, error)
	RegenerateRateConfirmation(ctx context.Context, code string, actor model.Principal) (*service.BookingResult, error)
	Cancel(ctx context.Context, code string, actor model.Principal) (*model.Shipment, error)
	Advance(ctx context.Context, code string, to model.ShipmentStatus, actor model.Principal) (*model.Shipment, error)
}

type DocumentService interface {
	ViewURL(ctx context.Context, id uuid.UUID, disposition storage.Disposition) (string, error)
	ListMine(ctx context.Context, principal model.Principal) ([]model.Document, error)
}

type ReportService interface {
	BookedLoads(ctx context.Context, input service.BookedLoadsInput) (*service.GenerateReportResult, error)
}

type Handler struct {
	shipments ShipmentService
	bookings  BookingService
	documents DocumentService
	reports   ReportService
	log       zerolog.Logger
}

func NewHandler(
	shipments ShipmentService,
	bookings BookingService,
	documents DocumentService,
	reports ReportService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		shipments: shipments,
		bookings:  bookings,
		documents: documents,
		reports:   reports,
		log:       log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.POST("/shipments", h.createShipment)
	protected.GET("/shipments/:code", h.getShipment)
	protected.POST("/shipments/:code/book", h.bookShipment)
	protected.POST("/shipments/:code/cancel", h.cancelShipment)
	protected.POST("/shipments/:code/status", h.advanceShipment)
	protected.POST("/shipments/:code/rate-confirmation", h.regenerateRateConfirmation)
	protected.GET("/documents/:id/view", h.viewDocument)
	protected.GET("/users/me/documents", h.listMyDocuments)
	protected.GET("/reports/booked", h.exportBookedLoads)
}

type addressRequest struct {
	Address string `json:"address"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
	Country string `json:"country"`
}

func (r addressRequest) toModel() model.Address {
	return model.Address{
		Address: strings.TrimSpace(r.Address),
		City:    strings.TrimSpace(r.City),
		State:   strings.TrimSpace(r.State),
		Zipcode: strings.TrimSpace(r.Zipcode),
		Country: strings.TrimSpace(r.Country),
	}
}

type baseRateRequest struct {
	Amount   float64 `json:"amount" binding:"gte=0"`
	Currency string  `json:"currency" binding:"omitempty,currency"`
	RateType string  `json:"rateType"`
}

type createShipmentRequest struct {
	ShipmentType        string                     `json:"shipmentType" binding:"required"`
	EquipmentType       string                     `json:"equipmentType" binding:"required"`
	PickupDate          string                     `json:"pickupDate" binding:"required"`
	DeliveryDate        string                     `json:"deliveryDate" binding:"required"`
	Origin              addressRequest             `json:"origin"`
	Destination         addressRequest             `json:"destination"`
	Distance            float64                    `json:"distance" binding:"gte=0"`
	BaseRate            baseRateRequest            `json:"baseRate"`
	Accessorials        model.AccessorialSelection `json:"accessorials" binding:"omitempty,dive,keys,oneof=shipment pickup delivery,endkeys"`
	AccessorialPricing  model.PricingTable         `json:"accessorialPricing" binding:"omitempty,dive,keys,oneof=shipment pickup delivery other,endkeys,dive,accessorial_price"`
	AccountID           string                     `json:"accountId" binding:"omitempty,uuid"`
	Commodity           string                     `json:"commodity"`
	Weight              float64                    `json:"weight" binding:"gte=0"`
	SpecialInstructions string                     `json:"specialInstructions"`
	Notes               string                     `json:"notes"`
}

func (h *Handler) createShipment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pickup, err := parseDate(req.PickupDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pickupDate"})
		return
	}
	delivery, err := parseDate(req.DeliveryDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deliveryDate"})
		return
	}

	var accountID *uuid.UUID
	if req.AccountID != "" {
		id, err := uuid.Parse(strings.TrimSpace(req.AccountID))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid accountId"})
			return
		}
		accountID = &id
	}

	shipment, err := h.shipments.Create(c.Request.Context(), service.CreateShipmentInput{
		Principal:     principal,
		ShipmentType:  req.ShipmentType,
		EquipmentType: req.EquipmentType,
		PickupDate:    pickup,
		DeliveryDate:  delivery,
		Origin:        req.Origin.toModel(),
		Destination:   req.Destination.toModel(),
		Distance:      req.Distance,
		BaseRate: model.BaseRate{
			Amount:   req.BaseRate.Amount,
			Currency: req.BaseRate.Currency,
			RateType: req.BaseRate.RateType,
		},
		Accessorials:        req.Accessorials,
		AccessorialPricing:  req.AccessorialPricing,
		AccountID:           accountID,
		Commodity:           req.Commodity,
		Weight:              req.Weight,
		SpecialInstructions: req.SpecialInstructions,
		Notes:               req.Notes,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shipment)
}

func (h *Handler) getShipment(c *gin.Context) {
	view, err := h.shipments.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) bookShipment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	result, err := h.bookings.BookAndDocument(c.Request.Context(), c.Param("code"), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) regenerateRateConfirmation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	result, err := h.bookings.RegenerateRateConfirmation(c.Request.Context(), c.Param("code"), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) cancelShipment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	shipment, err := h.bookings.Cancel(c.Request.Context(), c.Param("code"), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, shipment)
}

type advanceRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) advanceShipment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, ok := model.ParseShipmentStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	shipment, err := h.bookings.Advance(c.Request.Context(), c.Param("code"), status, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, shipment)
}

func (h *Handler) viewDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	disposition := storage.DispositionInline
	if strings.EqualFold(c.Query("disposition"), string(storage.DispositionAttachment)) {
		disposition = storage.DispositionAttachment
	}

	signed, err := h.documents.ViewURL(c.Request.Context(), id, disposition)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, signed)
}

func (h *Handler) listMyDocuments(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	docs, err := h.documents.ListMine(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *Handler) exportBookedLoads(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	start, err := parseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	end, err := parseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}

	result, err := h.reports.BookedLoads(c.Request.Context(), service.BookedLoadsInput{
		Principal:   principal,
		PeriodStart: start,
		PeriodEnd:   end,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, xlsxContentType, result.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var pipelineErr *service.PipelineError
	if errors.As(err, &pipelineErr) {
		code := ""
		if pipelineErr.Shipment != nil {
			code = pipelineErr.Shipment.ShipmentNumber
		}
		h.log.Error().Err(err).Str("shipment", code).Str("stage", pipelineErr.Stage).Msg("document pipeline failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "DocumentPipelineFailed",
			"message":   "shipment " + code + " is booked but its rate confirmation could not be produced; retry the document step",
			"stage":     pipelineErr.Stage,
			"shipment":  pipelineErr.Shipment,
			"retryPath": "/shipments/" + code + "/rate-confirmation",
		})
		return
	}

	var conflict *service.ConflictError
	if errors.As(err, &conflict) {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrStatusConflict) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"error":          err.Error(),
			"shipmentNumber": conflict.ShipmentNumber,
			"status":         conflict.Status,
			"heldBy":         conflict.HeldBy,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAlreadyBooked),
		errors.Is(err, service.ErrAlreadyCancelled):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrGenerationExhausted):
		h.log.Error().Err(err).Msg("shipment number generation exhausted")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "GenerationExhausted"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
