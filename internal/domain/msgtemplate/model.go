package msgtemplate

import (
	"bytes"
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// MaxBodyLength bounds a template body. WhatsApp caps messages well above
// this, but the link must stay usable.
const MaxBodyLength = 1000

// Placeholders understood by Render.
const (
	VarLeadName     = "nome"
	VarReferrerName = "indicador"
	VarShopName     = "barbearia"
)

// Domain errors
var (
	ErrEmptyID   = errors.New("template id cannot be empty")
	ErrEmptyName = errors.New("template name cannot be empty")
	ErrEmptyBody = errors.New("template body cannot be empty")
)

// mdRenderer escapes raw HTML in template bodies (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// Template is a reusable WhatsApp message.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Body string `json:"body"` // markdown with {placeholders}
}

// ItemID identifies the template in its list.
func (t Template) ItemID() string { return t.ID }

// Validate checks if the Template has valid data.
// PRE: Template struct is populated
// POST: Returns nil if valid, error otherwise
func (t Template) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(t.Body) == "" {
		return ErrEmptyBody
	}
	if len(t.Body) > MaxBodyLength {
		return errors.New("template body cannot exceed 1000 characters")
	}
	return nil
}

// Render substitutes {placeholder} occurrences. Unknown placeholders are
// left as written.
// INVARIANT: t is not mutated
func (t Template) Render(vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(t.Body)
}

// RenderHTML converts rendered message text to an HTML preview.
func RenderHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Defaults returns the templates a new organization starts with.
func Defaults() []Template {
	return []Template{
		{
			ID:   "primeiro_contato",
			Name: "Primeiro contato",
			Body: "Olá {nome}! Aqui é da {barbearia}. O {indicador} indicou você e tem um *corte de boas-vindas* esperando. Vamos agendar?",
		},
		{
			ID:   "lembrete",
			Name: "Lembrete",
			Body: "Oi {nome}, passando para lembrar do seu horário na {barbearia}. Qualquer coisa é só responder aqui.",
		},
		{
			ID:   "pos_atendimento",
			Name: "Pós-atendimento",
			Body: "Valeu pela visita, {nome}! Indique um amigo e ganhe pontos no programa da {barbearia}.",
		},
	}
}
