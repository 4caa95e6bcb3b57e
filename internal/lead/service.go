// Package lead captures seller leads and program inquiries, stamping each
// with the visitor's attribution trail before fanning out notifications.
package lead

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/access-realty/directlist/internal/attribution"
	"github.com/access-realty/directlist/internal/crm"
	"github.com/access-realty/directlist/internal/model"
	"github.com/access-realty/directlist/internal/store"
	"github.com/access-realty/directlist/pkg/slack"
)

// ErrInvalid marks submissions rejected by validation.
var ErrInvalid = eris.New("invalid submission")

// NewLead is an inbound lead submission.
type NewLead struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Source  string `json:"source"`
	Message string `json:"message,omitempty"`
}

// NewInquiry is an inbound program inquiry.
type NewInquiry struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Program string `json:"program"`
}

// Service persists submissions and fans out notifications. Slack and CRM
// failures never fail a submission; a captured lead beats a clean error
// budget.
type Service struct {
	store    store.Store
	tracker  *attribution.Tracker
	notifier slack.Client
	syncer   crm.Syncer

	// notifyTimeout bounds the post-persist notification fan-out, which
	// runs detached from the request context.
	notifyTimeout time.Duration
}

// Option configures the Service.
type Option func(*Service)

// WithNotifier enables Slack alerts for new submissions.
func WithNotifier(n slack.Client) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithCRM enables CRM sync for new leads.
func WithCRM(c crm.Syncer) Option {
	return func(s *Service) {
		s.syncer = c
	}
}

// WithNotifyTimeout overrides the default 15s notification deadline.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.notifyTimeout = d
	}
}

// NewService creates a lead service.
func NewService(st store.Store, tracker *attribution.Tracker, opts ...Option) *Service {
	s := &Service{
		store:         st,
		tracker:       tracker,
		notifyTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and persists a lead, attaching the visitor's first,
// latest, and converting touches. pageURL is the URL of the submitting page;
// its query parameters decide the converting touch.
func (s *Service) Submit(ctx context.Context, visitorID string, in NewLead, pageURL *url.URL) (*model.Lead, error) {
	if err := validateContact(in.Name, in.Email); err != nil {
		return nil, err
	}
	if in.Source == "" {
		return nil, eris.Wrap(ErrInvalid, "source is required")
	}

	lead := model.Lead{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
		Source:  in.Source,
		Message: in.Message,
	}

	snap := s.tracker.Snapshot(ctx, visitorID, pageURL)
	lead.FirstTouch = snap.FirstTouch
	lead.LatestTouch = snap.LatestTouch
	if attribution.HasTrackingParams(snap.Converting) {
		converting := snap.Converting
		lead.ConvertingTouch = &converting
	}

	created, err := s.store.CreateLead(ctx, lead)
	if err != nil {
		return nil, eris.Wrap(err, "lead: persist")
	}

	// The attribution trail is consumed by the conversion; a later visit
	// starts a fresh first touch.
	s.tracker.Clear(ctx, visitorID)

	s.notifyLead(*created)
	return created, nil
}

// SubmitInquiry validates and persists a program inquiry. Inquiries carry
// attribution as display summaries rather than full touch records.
func (s *Service) SubmitInquiry(ctx context.Context, visitorID string, in NewInquiry, pageURL *url.URL) (*model.Inquiry, error) {
	if err := validateContact(in.Name, in.Email); err != nil {
		return nil, err
	}
	if in.Program == "" {
		return nil, eris.Wrap(ErrInvalid, "program is required")
	}

	inq := model.Inquiry{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Program: in.Program,
	}

	snap := s.tracker.Snapshot(ctx, visitorID, pageURL)
	if snap.FirstTouch != nil {
		inq.FirstTouch = snap.FirstTouch.Summary()
	}
	if snap.LatestTouch != nil {
		inq.LatestTouch = snap.LatestTouch.Summary()
	}

	created, err := s.store.CreateInquiry(ctx, inq)
	if err != nil {
		return nil, eris.Wrap(err, "lead: persist inquiry")
	}

	s.notifyInquiry(*created)
	return created, nil
}

func validateContact(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return eris.Wrap(ErrInvalid, "name is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return eris.Wrap(ErrInvalid, "email is invalid")
	}
	return nil
}

func (s *Service) notifyLead(lead model.Lead) {
	if s.notifier == nil && s.syncer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	g, ctx := errgroup.WithContext(ctx)

	if s.notifier != nil {
		g.Go(func() error {
			return s.notifier.Post(ctx, leadMessage(lead))
		})
	}
	if s.syncer != nil {
		g.Go(func() error {
			return s.syncer.SyncLead(ctx, lead)
		})
	}

	go func() {
		defer cancel()
		if err := g.Wait(); err != nil {
			zap.L().Warn("lead notification failed",
				zap.String("lead_id", lead.ID),
				zap.Error(err),
			)
		}
	}()
}

func (s *Service) notifyInquiry(inq model.Inquiry) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	go func() {
		defer cancel()
		if err := s.notifier.Post(ctx, inquiryMessage(inq)); err != nil {
			zap.L().Warn("inquiry notification failed",
				zap.String("inquiry_id", inq.ID),
				zap.Error(err),
			)
		}
	}()
}

func leadMessage(lead model.Lead) slack.Message {
	fields := []string{
		fmt.Sprintf("*Name:*\n%s", lead.Name),
		fmt.Sprintf("*Email:*\n%s", lead.Email),
	}
	if lead.Phone != "" {
		fields = append(fields, fmt.Sprintf("*Phone:*\n%s", lead.Phone))
	}
	if lead.Address != "" {
		fields = append(fields, fmt.Sprintf("*Address:*\n%s", lead.Address))
	}
	fields = append(fields, fmt.Sprintf("*Attribution:*\n%s", attributionLine(lead)))

	blocks := []slack.Block{
		slack.SectionBlock(fmt.Sprintf("*New lead* via `%s`", lead.Source)),
		slack.FieldsBlock(fields...),
	}
	if lead.Message != "" {
		blocks = append(blocks, slack.SectionBlock(fmt.Sprintf("> %s", lead.Message)))
	}

	return slack.Message{
		Text:   fmt.Sprintf("New lead: %s (%s)", lead.Name, lead.Source),
		Blocks: blocks,
	}
}

func inquiryMessage(inq model.Inquiry) slack.Message {
	touch := inq.FirstTouch
	if touch == "" {
		touch = "none"
	}
	return slack.Message{
		Text: fmt.Sprintf("New %s inquiry: %s", inq.Program, inq.Name),
		Blocks: []slack.Block{
			slack.SectionBlock(fmt.Sprintf("*New inquiry* for `%s`", inq.Program)),
			slack.FieldsBlock(
				fmt.Sprintf("*Name:*\n%s", inq.Name),
				fmt.Sprintf("*Email:*\n%s", inq.Email),
				fmt.Sprintf("*First touch:*\n%s", touch),
			),
		},
	}
}

func attributionLine(lead model.Lead) string {
	var parts []string
	if lead.FirstTouch != nil {
		parts = append(parts, "first: "+lead.FirstTouch.Summary())
	}
	if lead.ConvertingTouch != nil {
		parts = append(parts, "converting: "+lead.ConvertingTouch.Summary())
	}
	if len(parts) == 0 {
		return "direct / untracked"
	}
	return strings.Join(parts, " | ")
}
