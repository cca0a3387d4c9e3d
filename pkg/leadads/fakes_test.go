package leadads

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/meta"
	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeGraph struct {
	mu sync.Mutex

	exchangeErr  error
	longLivedErr error
	listPagesErr error
	pages        []meta.Page
	// subscribe results by page id; a missing entry means success
	subscribe    map[string]bool
	subscribeErr map[string]error
	forms        map[string][]meta.Form
	formsErr     error

	calls          int
	subscribeOrder []string
	listPagesToken string
}

func (g *fakeGraph) record() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
}

func (g *fakeGraph) AuthCodeURL(app meta.AppCredentials, state string) string {
	return "https://dialog.example.com/oauth?client_id=" + app.AppID + "&state=" + state
}

func (g *fakeGraph) ExchangeCode(ctx context.Context, app meta.AppCredentials, code string) (*meta.Token, error) {
	g.record()
	if g.exchangeErr != nil {
		return nil, g.exchangeErr
	}
	return &meta.Token{AccessToken: "short-token"}, nil
}

func (g *fakeGraph) ExchangeLongLived(ctx context.Context, app meta.AppCredentials, shortLived string) (*meta.Token, error) {
	g.record()
	if g.longLivedErr != nil {
		return nil, g.longLivedErr
	}
	return &meta.Token{AccessToken: "long-token", ExpiresIn: 60 * 24 * time.Hour}, nil
}

func (g *fakeGraph) ListPages(ctx context.Context, userToken string) ([]meta.Page, error) {
	g.record()
	g.mu.Lock()
	g.listPagesToken = userToken
	g.mu.Unlock()
	if g.listPagesErr != nil {
		return nil, g.listPagesErr
	}
	return g.pages, nil
}

func (g *fakeGraph) SubscribeWebhook(ctx context.Context, pageID, pageToken string) (bool, error) {
	g.record()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscribeOrder = append(g.subscribeOrder, pageID)
	if err := g.subscribeErr[pageID]; err != nil {
		return false, err
	}
	if ok, found := g.subscribe[pageID]; found {
		return ok, nil
	}
	return true, nil
}

func (g *fakeGraph) ListForms(ctx context.Context, pageID, pageToken string) ([]meta.Form, error) {
	g.record()
	if g.formsErr != nil {
		return nil, g.formsErr
	}
	return g.forms[pageID+"|"+pageToken], nil
}

type fakeState struct {
	decoded map[string]string
	err     error
	calls   int
}

func (s *fakeState) Encode(ctx context.Context, userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "state-for-" + userID, nil
}

func (s *fakeState) Decode(ctx context.Context, state string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	userID, ok := s.decoded[state]
	if !ok {
		return "", errors.New("unexpected state")
	}
	return userID, nil
}

type fakeSettings struct {
	config *models.MetaAppConfig
	err    error
}

func (f *fakeSettings) Get(ctx context.Context) (*models.MetaAppConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.config == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "meta app config does not exist")
	}
	return f.config, nil
}

func (f *fakeSettings) Upsert(ctx context.Context, config *models.MetaAppConfig) error {
	f.config = config
	return nil
}

// memoryIntegrations mimics the (user_id, page_id) upsert of the real table.
type memoryIntegrations struct {
	mu        sync.Mutex
	rows      map[string]*models.Integration
	failPages map[string]bool
	upserts   int
}

func newMemoryIntegrations() *memoryIntegrations {
	return &memoryIntegrations{rows: map[string]*models.Integration{}, failPages: map[string]bool{}}
}

func (m *memoryIntegrations) Upsert(ctx context.Context, integration *models.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.failPages[integration.PageID] {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert integration")
	}

	key := integration.UserID + "|" + integration.PageID
	now := time.Now()
	if existing, ok := m.rows[key]; ok {
		integration.ID = existing.ID
		integration.CreatedAt = existing.CreatedAt
	} else {
		integration.ID = uuid.New()
		integration.CreatedAt = now
	}
	integration.UpdatedAt = now
	row := *integration
	m.rows[key] = &row
	return nil
}

func (m *memoryIntegrations) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id && row.UserID == userID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "integration %s does not exist", id)
}

func (m *memoryIntegrations) ListByUser(ctx context.Context, userID string) ([]models.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Integration{}
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageID < out[j].PageID })
	return out, nil
}

func (m *memoryIntegrations) get(userID, pageID string) *models.Integration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[userID+"|"+pageID]
}

func (m *memoryIntegrations) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type fakeFormConfigs struct {
	configs map[uuid.UUID][]models.FormConfig
	err     error
}

func (f *fakeFormConfigs) ListByIntegration(ctx context.Context, integrationID uuid.UUID) ([]models.FormConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.configs[integrationID], nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []*kafka.IntegrationEvent
	err    error
}

func (f *fakeEvents) PublishIntegrationEvent(ctx context.Context, evt *kafka.IntegrationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return f.err
}

type fakeLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeLocker) WithLock(ctx context.Context, key string, ttl, wait time.Duration, fn func() error) error {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return fn()
}
