// Package leadads connects a user's Facebook pages to lead-generation webhooks
// and serves their lead forms.
package leadads

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/meta"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// TokenLifetime is the fixed validity recorded for a page token.
const TokenLifetime = 60 * 24 * time.Hour

const (
	pageLockTTL  = time.Minute
	pageLockWait = 10 * time.Second
)

// GraphAPI is the subset of the Graph client the service calls.
type GraphAPI interface {
	AuthCodeURL(app meta.AppCredentials, state string) string
	ExchangeCode(ctx context.Context, app meta.AppCredentials, code string) (*meta.Token, error)
	ExchangeLongLived(ctx context.Context, app meta.AppCredentials, shortLived string) (*meta.Token, error)
	ListPages(ctx context.Context, userToken string) ([]meta.Page, error)
	SubscribeWebhook(ctx context.Context, pageID, pageToken string) (bool, error)
	ListForms(ctx context.Context, pageID, pageToken string) ([]meta.Form, error)
}

type StateCodec interface {
	Encode(ctx context.Context, userID string) (string, error)
	Decode(ctx context.Context, state string) (string, error)
}

type EventPublisher interface {
	PublishIntegrationEvent(ctx context.Context, evt *kafka.IntegrationEvent) error
}

// PageLocker serializes work on one page across concurrent callbacks.
type PageLocker interface {
	WithLock(ctx context.Context, key string, ttl, wait time.Duration, fn func() error) error
}

type Config struct {
	// SettingsURL is where the callback sends the browser back to.
	SettingsURL string
	// PageConcurrency bounds how many pages are processed at once; 1 is strictly sequential.
	PageConcurrency int
	Now             func() time.Time
}

type Dependencies struct {
	Graph        GraphAPI
	State        StateCodec
	Settings     repositories.MetaAppConfigRepo
	Integrations repositories.IntegrationRepo
	FormConfigs  repositories.FormConfigRepo
	// Events and Locks are optional
	Events EventPublisher
	Locks  PageLocker
}

type Service struct {
	config Config
	deps   Dependencies
	logger ectologger.Logger
}

func NewService(config Config, deps Dependencies, logger ectologger.Logger) *Service {
	if config.PageConcurrency < 1 {
		config.PageConcurrency = 1
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Service{config: config, deps: deps, logger: logger}
}

// AuthorizeURL returns the consent dialog URL for userID.
func (s *Service) AuthorizeURL(ctx context.Context, userID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "LeadAds.AuthorizeURL")
	defer span.End()

	if userID == "" {
		metrics.OAuthAuthorizeTotal.WithLabelValues("unauthorized").Inc()
		return "", ErrUnauthorized
	}

	app, err := s.appCredentials(ctx)
	if err != nil {
		metrics.OAuthAuthorizeTotal.WithLabelValues(ErrorCode(err)).Inc()
		return "", err
	}

	state, err := s.deps.State.Encode(ctx, userID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to encode oauth state")
		metrics.OAuthAuthorizeTotal.WithLabelValues(CodeServerError).Inc()
		return "", fmt.Errorf("%w: encode state", ErrServerError)
	}

	metrics.OAuthAuthorizeTotal.WithLabelValues("success").Inc()
	s.logger.WithContext(ctx).WithField("user_id", userID).Info("Issued meta authorization url")
	return s.deps.Graph.AuthCodeURL(app, state), nil
}

// ListIntegrations returns the user's connected pages.
func (s *Service) ListIntegrations(ctx context.Context, userID string) ([]models.Integration, error) {
	ctx, span := tracing.StartSpan(ctx, "LeadAds.ListIntegrations")
	defer span.End()

	if userID == "" {
		return nil, ErrUnauthorized
	}
	integrations, err := s.deps.Integrations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerError, err)
	}
	return integrations, nil
}

// RedirectURL builds the settings page URL reporting err, or success when err is nil.
func (s *Service) RedirectURL(err error) string {
	u, parseErr := url.Parse(s.config.SettingsURL)
	if parseErr != nil {
		// config validation keeps this unreachable; fall back to a relative path
		u = &url.URL{Path: "/"}
	}

	q := u.Query()
	if err == nil {
		q.Set("success", "true")
	} else {
		q.Set("error", ErrorCode(err))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Service) appCredentials(ctx context.Context) (meta.AppCredentials, error) {
	config, err := s.deps.Settings.Get(ctx)
	if err != nil {
		if repositories.IsNotFound(err) {
			return meta.AppCredentials{}, ErrNotConfigured
		}
		return meta.AppCredentials{}, fmt.Errorf("%w: load meta app config: %v", ErrServerError, err)
	}
	if !config.Usable() {
		return meta.AppCredentials{}, ErrNotConfigured
	}
	return meta.AppCredentials{AppID: config.AppID, AppSecret: config.AppSecret}, nil
}

func (s *Service) publish(ctx context.Context, integration *models.Integration) {
	if s.deps.Events == nil {
		return
	}
	err := s.deps.Events.PublishIntegrationEvent(ctx, &kafka.IntegrationEvent{
		Type:              kafka.EventIntegrationConnected,
		IntegrationID:     integration.ID.String(),
		UserID:            integration.UserID,
		PageID:            integration.PageID,
		PageName:          integration.PageName,
		WebhookSubscribed: integration.WebhookSubscribed,
		TokenExpiresAt:    integration.TokenExpiresAt,
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("page_id", integration.PageID).Warn("Failed to publish integration event")
	}
}

func parseIntegrationID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: integration id is required", ErrInvalidRequest)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: integration id is malformed", ErrInvalidRequest)
	}
	return id, nil
}
