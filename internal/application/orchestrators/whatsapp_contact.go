package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"growthgame/internal/domain/history"
	"growthgame/internal/domain/msgtemplate"
	"growthgame/internal/domain/organization"
)

// ErrInvalidPhone is returned when a lead phone cannot become a WhatsApp number.
var ErrInvalidPhone = errors.New("lead phone must have 10 to 13 digits")

// brazilCountryCode is prefixed to local numbers (DDD + number).
const brazilCountryCode = "55"

// HistoryAppender appends a single history event.
type HistoryAppender interface {
	Append(ctx context.Context, e history.Event) error
}

// OrganizationReader loads organizations.
type OrganizationReader interface {
	GetByID(ctx context.Context, id string) (organization.Organization, error)
}

// WhatsAppContactInput carries input for RecordWhatsAppContact.
type WhatsAppContactInput struct {
	Actor      Principal
	ReferralID string
	TemplateID string
}

// WhatsAppContactDeps holds dependencies for RecordWhatsAppContact.
type WhatsAppContactDeps struct {
	Referrals     ReferralReader
	History       HistoryAppender
	Templates     TemplateSource
	Organizations OrganizationReader
	Now           func() time.Time
	GenerateID    func() string
}

// WhatsAppContact is the rendered message and the link that opens it.
type WhatsAppContact struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
	HTML  string `json:"html"`
	Link  string `json:"link"`
}

// ExecuteRecordWhatsAppContact renders a template for a lead and logs the
// contact attempt.
// PRE: referral and template exist in the caller's organization
// POST: returns a wa.me link; a whatsapp_contact event is appended
func ExecuteRecordWhatsAppContact(ctx context.Context, input WhatsAppContactInput, deps WhatsAppContactDeps) (WhatsAppContact, error) {
	if !input.Actor.Authenticated() {
		return WhatsAppContact{}, ErrUnauthorized
	}
	r, err := loadReferral(ctx, deps.Referrals, input.ReferralID, input.Actor.OrganizationID)
	if err != nil {
		return WhatsAppContact{}, err
	}
	tmpl, err := deps.Templates.Template(ctx, r.OrganizationID, input.TemplateID)
	if err != nil {
		return WhatsAppContact{}, err
	}
	org, err := deps.Organizations.GetByID(ctx, r.OrganizationID)
	if err != nil {
		return WhatsAppContact{}, notFound("organization "+r.OrganizationID, err)
	}
	phone, err := WhatsAppNumber(r.LeadPhone)
	if err != nil {
		return WhatsAppContact{}, err
	}

	text := tmpl.Render(map[string]string{
		msgtemplate.VarLeadName:     firstName(r.LeadName),
		msgtemplate.VarReferrerName: r.ReferrerName,
		msgtemplate.VarShopName:     org.Name,
	})
	preview, err := msgtemplate.RenderHTML(text)
	if err != nil {
		return WhatsAppContact{}, fmt.Errorf("render preview: %w", err)
	}

	event := history.NewEvent(deps.GenerateID(), r.ID, history.EventWhatsAppContact, input.Actor.Actor(), deps.Now()).
		WithData(map[string]any{"template_id": tmpl.ID, "phone": phone})
	if err := deps.History.Append(ctx, event); err != nil {
		return WhatsAppContact{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	slog.Info("referral_event", "event", "whatsapp_contact", "referral_id", r.ID, "template_id", tmpl.ID)

	return WhatsAppContact{
		Phone: phone,
		Text:  text,
		HTML:  preview,
		Link:  WhatsAppLink(phone, text),
	}, nil
}

// WhatsAppNumber keeps the digits of phone and adds the country code to
// 10 and 11 digit local numbers.
func WhatsAppNumber(phone string) (string, error) {
	var b strings.Builder
	for _, c := range phone {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 10 || len(digits) == 11:
		return brazilCountryCode + digits, nil
	case len(digits) >= 12 && len(digits) <= 13:
		return digits, nil
	}
	return "", ErrInvalidPhone
}

// WhatsAppLink builds a click-to-chat link with text prefilled.
func WhatsAppLink(phone, text string) string {
	return "https://wa.me/" + phone + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

func firstName(full string) string {
	if fields := strings.Fields(full); len(fields) > 0 {
		return fields[0]
	}
	return full
}
