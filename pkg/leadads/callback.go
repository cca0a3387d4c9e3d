package leadads

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/fern/pkg/meta"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/oauthstate"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// CallbackParams are the query parameters the consent dialog redirects with.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorReason      string
	ErrorDescription string
}

// PageResult is the outcome of one page in a callback run.
type PageResult struct {
	PageID            string
	PageName          string
	IntegrationID     uuid.UUID
	WebhookSubscribed bool
	Persisted         bool
	// Err is the persistence failure, if any. Subscription failures are data, not errors.
	Err error
}

type CallbackResult struct {
	UserID string
	// LongLived is false when the upgrade failed and the short-lived token was used.
	LongLived bool
	Pages     []PageResult
}

// HandleCallback completes the authorization. A non-nil error aborts the whole
// flow; per-page failures are reported in the result instead.
func (s *Service) HandleCallback(ctx context.Context, params CallbackParams) (result *CallbackResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "LeadAds.HandleCallback")
	defer span.End()

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = ErrorCode(err)
			span.RecordError(err)
		}
		metrics.OAuthCallbacksTotal.WithLabelValues(outcome).Inc()
	}()

	log := s.logger.WithContext(ctx)

	// Received
	if params.Error != "" {
		log.WithFields(map[string]any{
			"error":        params.Error,
			"error_reason": params.ErrorReason,
		}).Warnf("Authorization rejected by provider: %s", params.ErrorDescription)
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, params.Error)
	}
	if params.Code == "" || params.State == "" {
		log.Warn("Callback missing code or state")
		return nil, fmt.Errorf("%w: code and state are required", ErrInvalidRequest)
	}

	// StateDecoded
	userID, err := s.deps.State.Decode(ctx, params.State)
	if err != nil {
		if errors.Is(err, oauthstate.ErrInvalidState) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		log.WithError(err).Error("failed to decode oauth state")
		return nil, fmt.Errorf("%w: decode state: %v", ErrServerError, err)
	}
	log = log.WithField("user_id", userID)

	app, err := s.appCredentials(ctx)
	if err != nil {
		log.WithError(err).Warn("Callback received without a usable meta app config")
		return nil, err
	}

	// TokenExchanged
	short, err := s.deps.Graph.ExchangeCode(ctx, app, params.Code)
	if err != nil {
		log.WithError(err).Error("failed to exchange authorization code")
		return nil, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}

	// LongLivedUpgraded
	result = &CallbackResult{UserID: userID}
	userToken := short.AccessToken
	long, err := s.deps.Graph.ExchangeLongLived(ctx, app, short.AccessToken)
	if err != nil {
		log.WithError(err).Warn("Long-lived token upgrade failed, continuing with short-lived token")
	} else {
		userToken = long.AccessToken
		result.LongLived = true
	}

	// PagesListed
	pages, err := s.deps.Graph.ListPages(ctx, userToken)
	if err != nil {
		log.WithError(err).Error("failed to list pages")
		return nil, fmt.Errorf("%w: list pages: %v", ErrServerError, err)
	}

	// PerPageProcessed
	result.Pages = s.processPages(ctx, userID, pages)

	subscribed := 0
	for _, page := range result.Pages {
		if page.WebhookSubscribed {
			subscribed++
		}
	}
	log.WithFields(map[string]any{
		"page_count":       len(pages),
		"subscribed_count": subscribed,
		"long_lived":       result.LongLived,
	}).Info("Completed meta authorization callback")

	return result, nil
}

// processPages runs every page and keeps results in list order regardless of concurrency.
func (s *Service) processPages(ctx context.Context, userID string, pages []meta.Page) []PageResult {
	results := make([]PageResult, len(pages))

	if s.config.PageConcurrency <= 1 {
		for i, page := range pages {
			results[i] = s.processPageLocked(ctx, userID, page)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(s.config.PageConcurrency)
	for i, page := range pages {
		g.Go(func() error {
			results[i] = s.processPageLocked(ctx, userID, page)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) processPageLocked(ctx context.Context, userID string, page meta.Page) PageResult {
	if s.deps.Locks == nil {
		return s.processPage(ctx, userID, page)
	}

	var result PageResult
	err := s.deps.Locks.WithLock(ctx, "leadads:page:"+userID+":"+page.ID, pageLockTTL, pageLockWait, func() error {
		result = s.processPage(ctx, userID, page)
		return nil
	})
	if err != nil {
		// the lock only prevents duplicate subscribe calls; the page is still processed
		s.logger.WithContext(ctx).WithError(err).WithField("page_id", page.ID).Warn("Processing page without lock")
		result = s.processPage(ctx, userID, page)
	}
	return result
}

func (s *Service) processPage(ctx context.Context, userID string, page meta.Page) PageResult {
	ctx, span := tracing.StartSpan(ctx, "LeadAds.ProcessPage")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"user_id": userID,
		"page_id": page.ID,
	})
	result := PageResult{PageID: page.ID, PageName: page.Name}

	subscribed, err := s.deps.Graph.SubscribeWebhook(ctx, page.ID, page.AccessToken)
	if err != nil {
		log.WithError(err).Warn("Webhook subscription failed")
		subscribed = false
	} else if !subscribed {
		log.Warn("Webhook subscription reported success=false")
	}
	result.WebhookSubscribed = subscribed

	integration := &models.Integration{
		UserID:            userID,
		PageID:            page.ID,
		PageName:          page.Name,
		PageAccessToken:   page.AccessToken,
		TokenExpiresAt:    s.config.Now().UTC().Add(TokenLifetime),
		IsActive:          true,
		WebhookSubscribed: subscribed,
	}
	if err := s.deps.Integrations.Upsert(ctx, integration); err != nil {
		log.WithError(err).Error("failed to persist integration")
		result.Err = err
		metrics.PagesProcessedTotal.WithLabelValues(strconv.FormatBool(subscribed), "false").Inc()
		return result
	}

	result.Persisted = true
	result.IntegrationID = integration.ID
	metrics.PagesProcessedTotal.WithLabelValues(strconv.FormatBool(subscribed), "true").Inc()
	s.publish(ctx, integration)
	return result
}
