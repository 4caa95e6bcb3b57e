package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/access-realty/directlist/internal/attribution"
	"github.com/access-realty/directlist/internal/lead"
	"github.com/access-realty/directlist/internal/model"
	"github.com/access-realty/directlist/internal/parcel"
	"github.com/access-realty/directlist/internal/selling"
	"github.com/access-realty/directlist/internal/store"
	"github.com/access-realty/directlist/pkg/calendly"
	"github.com/access-realty/directlist/pkg/slack"
	"github.com/access-realty/directlist/pkg/stripe"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pageURL parses the page address a tracking request reports. A missing or
// unparseable URL is not an error; it just carries no parameters.
func pageURL(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	rec := s.tracker.Track(r.Context(), visitorID(r.Context()), pageURL(req.URL))
	writeJSON(w, http.StatusOK, map[string]any{
		"first_touch":  rec.FirstTouch,
		"latest_touch": rec.LatestTouch,
	})
}

func (s *Server) handleAttribution(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot(r.Context(), visitorID(r.Context()), pageURL(r.URL.Query().Get("url")))

	resp := map[string]any{
		"first_touch":  snap.FirstTouch,
		"latest_touch": snap.LatestTouch,
		"ready":        snap.Ready,
	}
	if attribution.HasTrackingParams(snap.Converting) {
		resp["converting_touch"] = snap.Converting
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		lead.NewLead
		PageURL string `json:"page_url"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := s.leads.Submit(r.Context(), visitorID(r.Context()), req.NewLead, pageURL(req.PageURL))
	if errors.Is(err, lead.ErrInvalid) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		zap.L().Error("lead submit failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save lead")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCreateInquiry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		lead.NewInquiry
		PageURL string `json:"page_url"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := s.leads.SubmitInquiry(r.Context(), visitorID(r.Context()), req.NewInquiry, pageURL(req.PageURL))
	if errors.Is(err, lead.ErrInvalid) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		zap.L().Error("inquiry submit failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save inquiry")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// optionResult pairs a recommended option with its display card.
type optionResult struct {
	Option selling.Option     `json:"option"`
	Card   selling.OptionCard `json:"card"`
}

func (s *Server) handleQuizRecommend(w http.ResponseWriter, r *http.Request) {
	var answers selling.QuizAnswers
	if !decodeBody(w, r, &answers) {
		return
	}

	rec, err := selling.Recommend(answers)
	if errors.Is(err, selling.ErrIncompleteAnswers) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		zap.L().Error("quiz recommend failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "recommendation failed")
		return
	}

	secondary := make([]optionResult, 0, len(rec.Secondary))
	for _, o := range rec.Secondary {
		secondary = append(secondary, optionResult{Option: o, Card: selling.BuildOptionCard(o)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"best":      optionResult{Option: rec.Best, Card: selling.BuildOptionCard(rec.Best)},
		"secondary": secondary,
	})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.payments == nil {
		writeError(w, http.StatusServiceUnavailable, "checkout is not configured")
		return
	}

	var req struct {
		Option  string `json:"option"`
		Email   string `json:"email"`
		LeadID  string `json:"lead_id"`
		Address string `json:"address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	option, err := selling.ParseOption(req.Option)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	priceID, ok := s.cfg.Checkout.Prices[string(option)]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("no package price for option %q", option))
		return
	}

	session, err := s.payments.CreateCheckoutSession(r.Context(), stripe.CheckoutSessionRequest{
		PriceID:       priceID,
		SuccessURL:    s.cfg.Checkout.SuccessURL,
		CancelURL:     s.cfg.Checkout.CancelURL,
		CustomerEmail: req.Email,
		Metadata: map[string]string{
			"selling_option": string(option),
			"lead_id":        req.LeadID,
			"address":        req.Address,
		},
	})
	if err != nil {
		zap.L().Error("checkout session failed",
			zap.String("option", string(option)),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "could not start checkout")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":   session.ID,
		"checkout_url": session.URL,
	})
}

func (s *Server) handleParcelLookup(w http.ResponseWriter, r *http.Request) {
	if s.resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "parcel lookup is not configured")
		return
	}

	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address query parameter is required")
		return
	}

	p, err := s.resolver.Resolve(r.Context(), address)
	if errors.Is(err, parcel.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no parcel found for address")
		return
	}
	if err != nil {
		zap.L().Error("parcel lookup failed", zap.String("address", address), zap.Error(err))
		writeError(w, http.StatusBadGateway, "parcel lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCalendlyWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.CalendlySigningKey == "" {
		writeError(w, http.StatusServiceUnavailable, "calendly webhooks are not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	if err := calendly.VerifySignature(s.cfg.CalendlySigningKey,
		r.Header.Get(calendly.SignatureHeader), body, 5*time.Minute); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	payload, err := calendly.ParseWebhook(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	switch payload.Event {
	case calendly.EventInviteeCreated:
		meeting := model.Meeting{
			EventURI:     payload.Payload.ScheduledEvent.URI,
			InviteeName:  payload.Payload.Name,
			InviteeEmail: payload.Payload.Email,
			EventType:    payload.Payload.ScheduledEvent.Name,
			StartTime:    payload.Payload.ScheduledEvent.StartTime,
			Status:       model.MeetingScheduled,
		}
		if err := s.store.UpsertMeeting(r.Context(), meeting); err != nil {
			zap.L().Error("meeting upsert failed",
				zap.String("event_uri", meeting.EventURI),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "could not save meeting")
			return
		}
		s.notifyMeeting(meeting)

	case calendly.EventInviteeCanceled:
		err := s.store.CancelMeeting(r.Context(), payload.Payload.ScheduledEvent.URI)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			zap.L().Error("meeting cancel failed",
				zap.String("event_uri", payload.Payload.ScheduledEvent.URI),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "could not cancel meeting")
			return
		}

	default:
		zap.L().Debug("ignoring calendly event", zap.String("event", payload.Event))
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) notifyMeeting(m model.Meeting) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		msg := slack.Message{
			Text: fmt.Sprintf("Meeting booked: %s (%s)", m.InviteeName, m.EventType),
			Blocks: []slack.Block{
				slack.SectionBlock(fmt.Sprintf("*Meeting booked*: %s", m.EventType)),
				slack.FieldsBlock(
					fmt.Sprintf("*Invitee:*\n%s", m.InviteeName),
					fmt.Sprintf("*Email:*\n%s", m.InviteeEmail),
					fmt.Sprintf("*Starts:*\n%s", m.StartTime.Format(time.RFC1123)),
				),
			},
		}
		if err := s.notifier.Post(ctx, msg); err != nil {
			zap.L().Warn("meeting notification failed",
				zap.String("event_uri", m.EventURI),
				zap.Error(err),
			)
		}
	}()
}
