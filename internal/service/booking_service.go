package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/freight-booking/internal/events"
	"github.com/nurpe/freight-booking/internal/metrics"
	"github.com/nurpe/freight-booking/internal/model"
	"github.com/nurpe/freight-booking/internal/pricing"
	"github.com/nurpe/freight-booking/internal/storage"
)

const eventTimeout = 5 * time.Second

type ShipmentStore interface {
	GetByNumber(ctx context.Context, code string) (*model.Shipment, error)
	Book(ctx context.Context, code string, carrierID uuid.UUID, at time.Time, ratePerMile *float64) (bool, error)
	Cancel(ctx context.Context, code string, from model.ShipmentStatus, actorID uuid.UUID, at time.Time) (bool, error)
	AdvanceStatus(ctx context.Context, code string, from, to model.ShipmentStatus, at time.Time) (bool, error)
}

type UserStore interface {
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.User, error)
}

type DocumentAttacher interface {
	AttachRateConfirmation(ctx context.Context, shipmentID, carrierID uuid.UUID, doc model.Document) (*model.Document, error)
}

type Renderer interface {
	Render(ctx context.Context, templateName string, doc model.RateConfirmation) ([]byte, error)
}

type ObjectPublisher interface {
	Publish(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type BookingOptions struct {
	TemplateName  string
	TempDir       string
	RenderTimeout time.Duration
	UploadTimeout time.Duration
}

type BookingDeps struct {
	Shipments ShipmentStore
	Users     UserStore
	Documents DocumentAttacher
	Renderer  Renderer
	Storage   ObjectPublisher
	Events    EventPublisher
	Metrics   *metrics.Metrics
	Terms     model.Terms
	Log       zerolog.Logger
}

// BookingService owns the shipment state transitions and the rate
// confirmation pipeline that follows a booking.
type BookingService struct {
	shipments ShipmentStore
	users     UserStore
	documents DocumentAttacher
	renderer  Renderer
	storage   ObjectPublisher
	events    EventPublisher
	metrics   *metrics.Metrics
	terms     model.Terms
	log       zerolog.Logger
	opts      BookingOptions
	now       func() time.Time
}

type BookingResult struct {
	Shipment         model.Shipment          `json:"shipment"`
	Accessorials     []model.AccessorialLine `json:"accessorials"`
	AccessorialTotal float64                 `json:"accessorialTotal"`
	TotalRate        float64                 `json:"totalRate"`
	RatePerMile      *float64                `json:"ratePerMile"`
	StorageKey       string                  `json:"storageKey"`
	Document         model.Document          `json:"document"`
}

func NewBookingService(deps BookingDeps, opts BookingOptions) *BookingService {
	if opts.TemplateName == "" {
		opts.TemplateName = "rate-confirmation"
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 30 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 30 * time.Second
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &BookingService{
		shipments: deps.Shipments,
		users:     deps.Users,
		documents: deps.Documents,
		renderer:  deps.Renderer,
		storage:   deps.Storage,
		events:    publisher,
		metrics:   deps.Metrics,
		terms:     deps.Terms,
		log:       deps.Log,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Book assigns an Available shipment to the calling carrier. The transition
// is a single conditional update; when it matches nothing the current state
// is read back to explain the refusal.
func (s *BookingService) Book(ctx context.Context, code string, actor model.Principal) (*model.Shipment, error) {
	if !actor.CanHaul() {
		return nil, fmt.Errorf("%w: only carriers can book shipments", ErrPermissionDenied)
	}

	current, err := s.getShipment(ctx, code)
	if err != nil {
		return nil, err
	}
	if current.Status != model.ShipmentStatusAvailable || current.Carrier() != nil {
		return nil, bookingConflict(current)
	}

	var ratePerMile *float64
	if rate, ok := pricing.RatePerMile(decimal.NewFromFloat(current.TotalRate), decimal.NewFromFloat(current.Distance)); ok {
		v := rate.InexactFloat64()
		ratePerMile = &v
	}

	at := s.now()
	booked, err := s.shipments.Book(ctx, code, actor.UserID, at, ratePerMile)
	if err != nil {
		return nil, fmt.Errorf("book shipment %s: %w", code, err)
	}
	if !booked {
		latest, err := s.getShipment(ctx, code)
		if err != nil {
			return nil, err
		}
		return nil, bookingConflict(latest)
	}

	shipment, err := s.getShipment(ctx, code)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("shipment", code).
		Str("actor", actor.UserID.String()).
		Msg("shipment booked")
	s.emit(ctx, events.TypeShipmentBooked, shipment, actor.UserID, "")
	return shipment, nil
}

// BookAndDocument books the shipment and issues its rate confirmation. A
// pipeline failure after the booking committed leaves the shipment Booked and
// is reported as a *PipelineError.
func (s *BookingService) BookAndDocument(ctx context.Context, code string, actor model.Principal) (*BookingResult, error) {
	shipment, err := s.Book(ctx, code, actor)
	if err != nil {
		s.metrics.BookingResult(bookingOutcome(err))
		return nil, err
	}

	result, err := s.issueRateConfirmation(ctx, shipment, actor.UserID)
	if err != nil {
		s.metrics.BookingResult("pipeline_failed")
		return nil, err
	}
	s.metrics.BookingResult("booked")
	return result, nil
}

// RegenerateRateConfirmation re-runs the document pipeline for a shipment that
// already has a carrier. Repeated runs converge on one document.
func (s *BookingService) RegenerateRateConfirmation(ctx context.Context, code string, actor model.Principal) (*BookingResult, error) {
	shipment, err := s.getShipment(ctx, code)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, shipment) {
		return nil, ErrPermissionDenied
	}
	if shipment.Carrier() == nil || !shipment.Status.CarrierBearing() {
		return nil, fmt.Errorf("%w: shipment %s is %s and has no carrier", ErrInvalidInput, code, shipment.Status)
	}
	return s.issueRateConfirmation(ctx, shipment, actor.UserID)
}

// Cancel moves a non-terminal shipment to Cancelled, guarded on the status
// observed before the write.
func (s *BookingService) Cancel(ctx context.Context, code string, actor model.Principal) (*model.Shipment, error) {
	current, err := s.getShipment(ctx, code)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, current) {
		return nil, ErrPermissionDenied
	}
	if current.Status == model.ShipmentStatusCancelled {
		return nil, &ConflictError{ShipmentNumber: code, Status: current.Status, Err: ErrAlreadyCancelled}
	}
	if !current.Status.CanTransition(model.ShipmentStatusCancelled) {
		return nil, fmt.Errorf("%w: %s shipment cannot be cancelled", ErrInvalidTransition, current.Status)
	}

	cancelled, err := s.shipments.Cancel(ctx, code, current.Status, actor.UserID, s.now())
	if err != nil {
		return nil, fmt.Errorf("cancel shipment %s: %w", code, err)
	}
	if !cancelled {
		latest, err := s.getShipment(ctx, code)
		if err != nil {
			return nil, err
		}
		if latest.Status == model.ShipmentStatusCancelled {
			return nil, &ConflictError{ShipmentNumber: code, Status: latest.Status, Err: ErrAlreadyCancelled}
		}
		return nil, &ConflictError{ShipmentNumber: code, Status: latest.Status, HeldBy: latest.Carrier(), Err: ErrStatusConflict}
	}

	shipment, err := s.getShipment(ctx, code)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("shipment", code).
		Str("actor", actor.UserID.String()).
		Str("from", string(current.Status)).
		Msg("shipment cancelled")
	s.emit(ctx, events.TypeShipmentCancelled, shipment, actor.UserID, "")
	return shipment, nil
}

// Advance applies the next forward edge of a booked shipment's lifecycle.
func (s *BookingService) Advance(ctx context.Context, code string, to model.ShipmentStatus, actor model.Principal) (*model.Shipment, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}
	current, err := s.getShipment(ctx, code)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, current) {
		return nil, ErrPermissionDenied
	}

	next, ok := current.Status.Next()
	if !current.Status.CarrierBearing() || !ok || next != to {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	advanced, err := s.shipments.AdvanceStatus(ctx, code, current.Status, to, s.now())
	if err != nil {
		return nil, fmt.Errorf("advance shipment %s: %w", code, err)
	}
	if !advanced {
		latest, err := s.getShipment(ctx, code)
		if err != nil {
			return nil, err
		}
		return nil, &ConflictError{ShipmentNumber: code, Status: latest.Status, HeldBy: latest.Carrier(), Err: ErrStatusConflict}
	}

	shipment, err := s.getShipment(ctx, code)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TypeShipmentStatusChanged, shipment, actor.UserID, "")
	return shipment, nil
}

func (s *BookingService) issueRateConfirmation(ctx context.Context, shipment *model.Shipment, actorID uuid.UUID) (*BookingResult, error) {
	code := shipment.ShipmentNumber
	log := s.log.With().Str("shipment", code).Logger()
	fail := func(stage string, err error) error {
		s.metrics.PipelineFailure(stage)
		log.Error().Err(err).Str("stage", stage).Msg("rate confirmation pipeline failed")
		return &PipelineError{Stage: stage, Shipment: shipment, Err: err}
	}

	started := time.Now()
	doc, err := s.buildConfirmation(ctx, shipment)
	if err != nil {
		return nil, fail(metrics.StageLoad, err)
	}
	s.metrics.ObserveStage(metrics.StageLoad, started)

	started = time.Now()
	renderCtx, cancelRender := context.WithTimeout(ctx, s.opts.RenderTimeout)
	data, err := s.renderer.Render(renderCtx, s.opts.TemplateName, doc)
	cancelRender()
	if err != nil {
		return nil, fail(metrics.StageRender, fmt.Errorf("%w: %v", ErrRender, err))
	}
	if len(data) == 0 {
		return nil, fail(metrics.StageRender, fmt.Errorf("%w: empty document", ErrRender))
	}

	artifact, err := os.CreateTemp(s.opts.TempDir, code+"-*.pdf")
	if err != nil {
		return nil, fail(metrics.StageRender, fmt.Errorf("%w: create temp file: %v", ErrRender, err))
	}
	defer os.Remove(artifact.Name())
	defer artifact.Close()

	if _, err := artifact.Write(data); err != nil {
		return nil, fail(metrics.StageRender, fmt.Errorf("%w: write temp file: %v", ErrRender, err))
	}
	if _, err := artifact.Seek(0, io.SeekStart); err != nil {
		return nil, fail(metrics.StageRender, fmt.Errorf("%w: rewind temp file: %v", ErrRender, err))
	}
	s.metrics.ObserveStage(metrics.StageRender, started)

	started = time.Now()
	key := storage.RateConfirmationKey(code)
	uploadCtx, cancelUpload := context.WithTimeout(ctx, s.opts.UploadTimeout)
	key, err = s.storage.Publish(uploadCtx, key, artifact, int64(len(data)), storage.ContentTypePDF)
	cancelUpload()
	if err != nil {
		return nil, fail(metrics.StageUpload, fmt.Errorf("%w: %v", ErrUpload, err))
	}
	s.metrics.ObserveStage(metrics.StageUpload, started)

	started = time.Now()
	saved, err := s.documents.AttachRateConfirmation(ctx, shipment.ID, *shipment.Carrier(), model.Document{
		DownloadURL: key,
		Description: "Rate Confirmation For " + code,
		UploadDate:  s.now(),
	})
	if err != nil {
		return nil, fail(metrics.StagePersist, fmt.Errorf("attach rate confirmation: %w", err))
	}
	s.metrics.ObserveStage(metrics.StagePersist, started)

	updated := *shipment
	updated.RateConfirmationURL = &key
	updated.DocumentIDs = appendUnique(shipment.DocumentIDs, saved.ID)

	log.Info().Str("key", key).Str("document", saved.ID.String()).Msg("rate confirmation issued")
	s.emit(ctx, events.TypeRateConfirmationIssued, &updated, actorID, key)

	return &BookingResult{
		Shipment:         updated,
		Accessorials:     doc.Accessorials,
		AccessorialTotal: doc.AccessorialTotal,
		TotalRate:        doc.TotalRate,
		RatePerMile:      doc.RatePerMile,
		StorageKey:       key,
		Document:         *saved,
	}, nil
}

func (s *BookingService) buildConfirmation(ctx context.Context, shipment *model.Shipment) (model.RateConfirmation, error) {
	carrierID := shipment.Carrier()
	if carrierID == nil {
		return model.RateConfirmation{}, fmt.Errorf("shipment %s has no carrier", shipment.ShipmentNumber)
	}
	users, err := s.users.GetUsers(ctx, []uuid.UUID{shipment.ShipperID, *carrierID})
	if err != nil {
		return model.RateConfirmation{}, fmt.Errorf("load participants: %w", err)
	}
	shipper, ok := users[shipment.ShipperID]
	if !ok {
		return model.RateConfirmation{}, fmt.Errorf("%w: shipper %s", ErrNotFound, shipment.ShipperID)
	}
	carrier, ok := users[*carrierID]
	if !ok {
		return model.RateConfirmation{}, fmt.Errorf("%w: carrier %s", ErrNotFound, carrierID)
	}

	lines, accessorialTotal := pricing.Itemize(shipment.AccessorialPricing, shipment.BaseRate.Currency)
	total := decimal.NewFromFloat(shipment.BaseRate.Amount).Add(accessorialTotal)

	doc := model.RateConfirmation{
		Shipment:         *shipment,
		Shipper:          shipper,
		Carrier:          carrier,
		Accessorials:     lines,
		AccessorialTotal: accessorialTotal.InexactFloat64(),
		TotalRate:        total.InexactFloat64(),
		Terms:            s.terms,
		IssuedAt:         s.now(),
	}
	if rate, ok := pricing.RatePerMile(total, decimal.NewFromFloat(shipment.Distance)); ok {
		v := rate.InexactFloat64()
		doc.RatePerMile = &v
	}
	return doc, nil
}

func (s *BookingService) getShipment(ctx context.Context, code string) (*model.Shipment, error) {
	shipment, err := s.shipments.GetByNumber(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: shipment %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("load shipment %s: %w", code, err)
	}
	return shipment, nil
}

func (s *BookingService) emit(ctx context.Context, typ events.Type, shipment *model.Shipment, actorID uuid.UUID, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()

	err := s.events.Publish(ctx, events.Event{
		Type:           typ,
		ShipmentNumber: shipment.ShipmentNumber,
		ShipmentID:     shipment.ID,
		Status:         shipment.Status,
		ActorID:        actorID,
		StorageKey:     key,
		OccurredAt:     s.now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("shipment", shipment.ShipmentNumber).Str("event", string(typ)).Msg("publish event failed")
	}
}

func bookingConflict(shipment *model.Shipment) error {
	err := ErrAlreadyBooked
	if shipment.Status == model.ShipmentStatusCancelled {
		err = ErrAlreadyCancelled
	}
	return &ConflictError{
		ShipmentNumber: shipment.ShipmentNumber,
		Status:         shipment.Status,
		HeldBy:         shipment.Carrier(),
		Err:            err,
	}
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyBooked), errors.Is(err, ErrAlreadyCancelled):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "forbidden"
	default:
		return "error"
	}
}

// canManage reports whether actor is a party to the shipment or staff.
func canManage(actor model.Principal, shipment *model.Shipment) bool {
	if actor.IsEmployee() {
		return true
	}
	if actor.UserID == shipment.ShipperID || actor.UserID == shipment.PostedByID {
		return true
	}
	if carrier := shipment.Carrier(); carrier != nil && *carrier == actor.UserID {
		return true
	}
	return false
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	out := make([]uuid.UUID, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id)
}
