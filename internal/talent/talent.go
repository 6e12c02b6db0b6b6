// Package talent lists promoted job ads and submits résumés to the talent
// network.
package talent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/types"
	"cvoptimizer/internal/wallet"
)

// Submission is a résumé sent to the talent network
type Submission struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"sessionId"`
	CV          types.CVData `json:"cvData"`
	SubmittedAt time.Time    `json:"submittedAt"`
}

// Publisher delivers submissions to the talent network.
type Publisher interface {
	Publish(ctx context.Context, submission Submission) error
	Close() error
}

// Catalog holds the promoted job ads shown to candidates.
type Catalog struct {
	ads []types.TalentAd
}

// NewCatalog copies ads into a catalog.
func NewCatalog(ads []types.TalentAd) *Catalog {
	return &Catalog{ads: append([]types.TalentAd(nil), ads...)}
}

// Ads returns every ad, promoted ones first, preserving order otherwise.
func (c *Catalog) Ads() []types.TalentAd {
	out := make([]types.TalentAd, 0, len(c.ads))
	for _, ad := range c.ads {
		if ad.IsPromoted {
			out = append(out, ad)
		}
	}
	for _, ad := range c.ads {
		if !ad.IsPromoted {
			out = append(out, ad)
		}
	}
	return out
}

// Service charges for and publishes talent network submissions.
type Service struct {
	catalog   *Catalog
	store     wallet.Store
	publisher Publisher
	cost      int
	logger    *errors.Logger

	now   func() time.Time
	newID func() string
}

// NewService wires a talent service from configuration.
func NewService(cfg config.TalentConfig, cost int, store wallet.Store, publisher Publisher, logger *errors.Logger) *Service {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Service{
		catalog:   NewCatalog(cfg.Ads),
		store:     store,
		publisher: publisher,
		cost:      cost,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Catalog returns the ad catalog.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Cost returns the token price of one submission.
func (s *Service) Cost() int {
	return s.cost
}

// Submit charges the session and publishes its résumé. The charge is
// refunded when publishing fails.
func (s *Service) Submit(ctx context.Context, sessionID string, cv types.CVData) (*Submission, wallet.State, error) {
	if cv.IsEmpty() {
		return nil, wallet.State{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"CV data is required for a talent submission", nil)
	}

	state, err := wallet.Charge(ctx, s.store, sessionID, s.cost)
	if err != nil {
		return nil, state, err
	}

	submission := Submission{
		ID:          s.newID(),
		SessionID:   sessionID,
		CV:          cv,
		SubmittedAt: s.now().UTC(),
	}

	if err := s.publisher.Publish(ctx, submission); err != nil {
		state = wallet.Refund(ctx, s.store, sessionID, s.cost, s.logger)
		if _, ok := errors.AsAppError(err); ok {
			return nil, state, err
		}
		return nil, state, errors.NewNetworkError(errors.ErrCodePublishFailed,
			"Failed to submit CV to the talent network", err)
	}

	s.logger.Info("CV submitted to talent network",
		"submission_id", submission.ID,
		"session_id", sessionID,
		"cost", s.cost)

	return &submission, state, nil
}

// Close closes the publisher.
func (s *Service) Close() error {
	return s.publisher.Close()
}
