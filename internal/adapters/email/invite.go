package email

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
)

// Invite describes a new team member's welcome message.
type Invite struct {
	OrganizationName string
	FullName         string
	Email            string
	Role             string
	AppURL           string
}

const inviteMarkdown = `Olá, **%s**!

Você foi adicionado à equipe da **%s** como *%s* no Growth Game.

Entre com o email %s em [%s](%s) usando a senha combinada com o administrador.
`

// RenderInvite builds the subject and HTML body of an invite. User-supplied
// values are HTML-escaped before markdown rendering.
// PRE: inv.Email is non-empty
// POST: Returns a SendRequest without From
func RenderInvite(inv Invite) (SendRequest, error) {
	esc := html.EscapeString
	md := fmt.Sprintf(inviteMarkdown,
		esc(inv.FullName), esc(inv.OrganizationName), esc(inv.Role), esc(inv.Email), esc(inv.AppURL), inv.AppURL)

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return SendRequest{}, fmt.Errorf("render invite: %w", err)
	}
	return SendRequest{
		To:      []string{inv.Email},
		Subject: fmt.Sprintf("Convite para a equipe %s", inv.OrganizationName),
		HTML:    buf.String(),
	}, nil
}
