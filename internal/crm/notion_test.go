package crm

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/access-realty/directlist/internal/attribution"
	"github.com/access-realty/directlist/internal/model"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *MockClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func testLead() model.Lead {
	return model.Lead{
		ID:      "lead-1",
		Name:    "Jordan Reyes",
		Email:   "jordan@example.com",
		Phone:   "555-0142",
		Source:  "sell_form",
		Message: "Looking to sell fast",
		FirstTouch: &attribution.TrackingParams{
			UTMSource: "google", UTMMedium: "cpc", UTMCampaign: "spring_sale",
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func emailFilter(email string) any {
	return mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		if !ok {
			return false
		}
		return pf.Property == "Email" && pf.Email != nil && pf.Email.Equals == email
	})
}

func TestSyncLeadCreatesPage(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-crm", emailFilter("jordan@example.com")).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{}}, nil).Once()

	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		if req.Parent.DatabaseID != "db-crm" {
			return false
		}
		title, ok := req.Properties["Name"].(notionapi.TitleProperty)
		if !ok || len(title.Title) != 1 || title.Title[0].Text.Content != "Jordan Reyes" {
			return false
		}
		email, ok := req.Properties["Email"].(notionapi.EmailProperty)
		if !ok || email.Email != "jordan@example.com" {
			return false
		}
		first, ok := req.Properties["First Touch"].(notionapi.RichTextProperty)
		return ok && first.RichText[0].Text.Content == "google / cpc / spring_sale"
	})).Return(&notionapi.Page{ID: "page-1"}, nil).Once()

	s := NewNotionSyncer(mc, "db-crm")
	require.NoError(t, s.SyncLead(ctx, testLead()))
	mc.AssertExpectations(t)
}

func TestSyncLeadSkipsDuplicate(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-crm", emailFilter("jordan@example.com")).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "existing"}}}, nil).Once()

	s := NewNotionSyncer(mc, "db-crm")
	require.NoError(t, s.SyncLead(ctx, testLead()))
	mc.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything)
}

func TestSyncLeadPropagatesErrors(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-crm", mock.Anything).
		Return(nil, assert.AnError).Once()

	s := NewNotionSyncer(mc, "db-crm")
	err := s.SyncLead(ctx, testLead())
	assert.ErrorContains(t, err, "check existing lead")
}

func TestLeadPropertiesOmitEmptyFields(t *testing.T) {
	props := leadProperties(model.Lead{
		Name: "Bare Lead", Email: "bare@example.com", Source: "quiz",
		CreatedAt: time.Now().UTC(),
	})
	assert.Contains(t, props, "Name")
	assert.Contains(t, props, "Email")
	assert.NotContains(t, props, "Phone")
	assert.NotContains(t, props, "Message")
	assert.NotContains(t, props, "First Touch")
}
