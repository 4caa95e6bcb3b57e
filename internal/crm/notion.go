// Package crm syncs captured leads into the team's Notion CRM database.
package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/access-realty/directlist/internal/model"
)

// Syncer pushes leads into an external CRM.
type Syncer interface {
	SyncLead(ctx context.Context, lead model.Lead) error
}

// Client defines the Notion API operations used by the syncer.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default Notion rate limit (3 req/s).
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type notionClient struct {
	inner   *notionapi.Client
	limiter *rate.Limiter
}

// NewClient creates a Notion client with the given integration token,
// throttled to Notion's 3 req/s limit by default.
func NewClient(token string, opts ...ClientOption) Client {
	c := &notionClient{
		inner:   notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(3, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *notionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "notion: rate limit")
	}
	resp, err := c.inner.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("notion: query database %s", dbID))
	}
	return resp, nil
}

func (c *notionClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "notion: rate limit")
	}
	page, err := c.inner.Page.Create(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "notion: create page")
	}
	return page, nil
}

// NotionSyncer writes one Notion page per lead, skipping emails already in
// the database so resubmissions don't pile up duplicate cards.
type NotionSyncer struct {
	client Client
	dbID   string
}

// NewNotionSyncer creates a syncer targeting the given CRM database.
func NewNotionSyncer(client Client, databaseID string) *NotionSyncer {
	return &NotionSyncer{client: client, dbID: databaseID}
}

func (s *NotionSyncer) SyncLead(ctx context.Context, lead model.Lead) error {
	exists, err := s.leadExists(ctx, lead.Email)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(s.dbID),
		},
		Properties: leadProperties(lead),
	}
	if _, err := s.client.CreatePage(ctx, req); err != nil {
		return eris.Wrapf(err, "crm: sync lead %s", lead.ID)
	}
	return nil
}

func (s *NotionSyncer) leadExists(ctx context.Context, email string) (bool, error) {
	resp, err := s.client.QueryDatabase(ctx, s.dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Email",
			Email:    &notionapi.TextFilterCondition{Equals: email},
		},
		PageSize: 1,
	})
	if err != nil {
		return false, eris.Wrapf(err, "crm: check existing lead %s", email)
	}
	return len(resp.Results) > 0, nil
}

func leadProperties(lead model.Lead) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: richText(lead.Name),
		},
		"Email": notionapi.EmailProperty{
			Email: lead.Email,
		},
		"Source": notionapi.SelectProperty{
			Select: notionapi.Option{Name: lead.Source},
		},
		"Status": notionapi.StatusProperty{
			Status: notionapi.Option{Name: "New"},
		},
		"Created": notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: notionDate(lead.CreatedAt)},
		},
	}
	if lead.Phone != "" {
		props["Phone"] = notionapi.PhoneNumberProperty{PhoneNumber: lead.Phone}
	}
	if lead.Address != "" {
		props["Address"] = notionapi.RichTextProperty{RichText: richText(lead.Address)}
	}
	if lead.Message != "" {
		props["Message"] = notionapi.RichTextProperty{RichText: richText(lead.Message)}
	}
	if lead.FirstTouch != nil {
		props["First Touch"] = notionapi.RichTextProperty{RichText: richText(lead.FirstTouch.Summary())}
	}
	if lead.LatestTouch != nil {
		props["Latest Touch"] = notionapi.RichTextProperty{RichText: richText(lead.LatestTouch.Summary())}
	}
	if lead.ConvertingTouch != nil {
		props["Converting Touch"] = notionapi.RichTextProperty{RichText: richText(lead.ConvertingTouch.Summary())}
	}
	return props
}

func richText(text string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: text},
	}}
}

func notionDate(t time.Time) *notionapi.Date {
	d := notionapi.Date(t)
	return &d
}
