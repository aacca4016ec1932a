package service

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/freight-booking/internal/events"
	"github.com/nurpe/freight-booking/internal/model"
	"github.com/nurpe/freight-booking/internal/storage"
)

// memoryStore stands in for the postgres repositories. Conditional updates
// are applied under one mutex, mirroring the row-level atomicity of the real
// UPDATE ... WHERE statements.
type memoryStore struct {
	mu sync.Mutex

	shipments    map[string]*model.Shipment
	users        map[uuid.UUID]model.User
	accounts     map[uuid.UUID]*model.Account
	documents    map[uuid.UUID]model.Document
	documentKeys map[string]uuid.UUID
	shipmentDocs map[uuid.UUID][]uuid.UUID
	userDocs     map[uuid.UUID][]uuid.UUID

	createErrs   []error
	attachErr    error
	beforeCancel func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		shipments:    make(map[string]*model.Shipment),
		users:        make(map[uuid.UUID]model.User),
		accounts:     make(map[uuid.UUID]*model.Account),
		documents:    make(map[uuid.UUID]model.Document),
		documentKeys: make(map[string]uuid.UUID),
		shipmentDocs: make(map[uuid.UUID][]uuid.UUID),
		userDocs:     make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *memoryStore) addUser(userType model.UserType, company string) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := model.User{ID: uuid.New(), Email: company + "@example.com", CompanyName: company, UserType: userType}
	m.users[u.ID] = u
	return u
}

func (m *memoryStore) put(s model.Shipment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.shipments[s.ShipmentNumber] = &s
}

func (m *memoryStore) snapshot(code string) model.Shipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyLocked(m.shipments[code])
}

func (m *memoryStore) copyLocked(s *model.Shipment) model.Shipment {
	out := *s
	out.Accessorials = s.Accessorials.Clone()
	out.AccessorialPricing = s.AccessorialPricing.Clone()
	out.DocumentIDs = append([]uuid.UUID(nil), m.shipmentDocs[s.ID]...)
	return out
}

func (m *memoryStore) ShipmentNumberExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.shipments[code]
	return ok, nil
}

func (m *memoryStore) CreateShipment(_ context.Context, s model.Shipment) (*model.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		return nil, err
	}
	if _, ok := m.shipments[s.ShipmentNumber]; ok {
		return nil, gorm.ErrDuplicatedKey
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	stored := s
	m.shipments[s.ShipmentNumber] = &stored
	out := m.copyLocked(&stored)
	return &out, nil
}

func (m *memoryStore) GetByNumber(_ context.Context, code string) (*model.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := m.copyLocked(s)
	return &out, nil
}

func (m *memoryStore) Book(_ context.Context, code string, carrierID uuid.UUID, at time.Time, ratePerMile *float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[code]
	if !ok || s.Status != model.ShipmentStatusAvailable || s.CarrierID != nil || s.AssignedCarrierID != nil {
		return false, nil
	}
	id := carrierID
	s.Status = model.ShipmentStatusBooked
	s.BookedAt = &at
	s.BookedByID = &id
	s.CarrierID = &id
	s.AssignedCarrierID = &id
	if ratePerMile != nil {
		v := *ratePerMile
		s.RatePerMile = &v
	}
	s.UpdatedAt = at
	return true, nil
}

func (m *memoryStore) Cancel(_ context.Context, code string, from model.ShipmentStatus, actorID uuid.UUID, at time.Time) (bool, error) {
	if m.beforeCancel != nil {
		m.beforeCancel()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[code]
	if !ok || s.Status != from {
		return false, nil
	}
	id := actorID
	s.Status = model.ShipmentStatusCancelled
	s.CancelledByID = &id
	s.CancelledAt = &at
	s.CarrierID = nil
	s.AssignedCarrierID = nil
	s.UpdatedAt = at
	return true, nil
}

func (m *memoryStore) AdvanceStatus(_ context.Context, code string, from, to model.ShipmentStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[code]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	s.UpdatedAt = at
	return true, nil
}

func (m *memoryStore) ListBookedByCarrier(_ context.Context, carrierID uuid.UUID, from, to time.Time) ([]model.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Shipment
	for _, s := range m.shipments {
		if s.BookedByID == nil || *s.BookedByID != carrierID || s.BookedAt == nil {
			continue
		}
		if s.BookedAt.Before(from) || !s.BookedAt.Before(to) {
			continue
		}
		out = append(out, m.copyLocked(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookedAt.Before(*out[j].BookedAt) })
	return out, nil
}

func (m *memoryStore) GetUsers(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]model.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *memoryStore) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (m *memoryStore) GetAccount(_ context.Context, id uuid.UUID) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *a
	return &out, nil
}

func (m *memoryStore) AttachRateConfirmation(_ context.Context, shipmentID, carrierID uuid.UUID, doc model.Document) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attachErr != nil {
		return nil, m.attachErr
	}

	id, ok := m.documentKeys[doc.DownloadURL]
	if !ok {
		id = uuid.New()
		m.documentKeys[doc.DownloadURL] = id
	}
	doc.ID = id
	m.documents[id] = doc
	m.shipmentDocs[shipmentID] = appendUnique(m.shipmentDocs[shipmentID], id)
	m.userDocs[carrierID] = appendUnique(m.userDocs[carrierID], id)

	for _, s := range m.shipments {
		if s.ID == shipmentID {
			key := doc.DownloadURL
			s.RateConfirmationURL = &key
		}
	}
	return &doc, nil
}

func (m *memoryStore) GetDocument(_ context.Context, id uuid.UUID) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &doc, nil
}

func (m *memoryStore) ListShipmentDocuments(_ context.Context, shipmentID uuid.UUID) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Document
	for _, id := range m.shipmentDocs[shipmentID] {
		out = append(out, m.documents[id])
	}
	return out, nil
}

func (m *memoryStore) ListUserDocuments(_ context.Context, userID uuid.UUID) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.userDocs[userID]
	out := make([]model.Document, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, m.documents[ids[i]])
	}
	return out, nil
}

type fakeRenderer struct {
	err   error
	calls int
	last  model.RateConfirmation
}

func (r *fakeRenderer) Render(ctx context.Context, _ string, doc model.RateConfirmation) ([]byte, error) {
	r.calls++
	r.last = doc
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 rate confirmation " + doc.Shipment.ShipmentNumber), ctx.Err()
}

type fakeObjectStore struct {
	mu          sync.Mutex
	err         error
	objects     map[string][]byte
	contentType string
	sourceFiles []string
	sourceSeen  []bool
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Publish(_ context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := r.(*os.File); ok {
		_, statErr := os.Stat(file.Name())
		f.sourceFiles = append(f.sourceFiles, file.Name())
		f.sourceSeen = append(f.sourceSeen, statErr == nil)
	}
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if int64(len(data)) != size {
		return "", errors.New("size mismatch")
	}
	f.objects[key] = data
	f.contentType = contentType
	return key, nil
}

func (f *fakeObjectStore) SignedURL(_ context.Context, key string, disposition storage.Disposition, contentType string, ttl time.Duration) (string, error) {
	return "https://storage.example.com/" + key + "?disposition=" + string(disposition) + "&type=" + contentType + "&ttl=" + ttl.String(), nil
}

type recordingEvents struct {
	mu     sync.Mutex
	err    error
	events []events.Event
}

func (r *recordingEvents) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingEvents) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type sequenceNumbers struct {
	codes []string
	next  int
}

func (s *sequenceNumbers) Generate(context.Context) (string, error) {
	if s.next >= len(s.codes) {
		return "", errors.New("sequence exhausted")
	}
	code := s.codes[s.next]
	s.next++
	return code, nil
}
