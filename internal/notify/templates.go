package notify

import (
	"embed"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/tenantonboard/internal/domain"
)

// TemplateIdentityActivation is the activation mail sent when a prospectus
// reaches the admin email activation stage.
const TemplateIdentityActivation = "Identity_Activation"

//go:embed templates/*.html
var templatesFS embed.FS

// Template is a subject plus an HTML body with ##KEY## placeholders.
type Template struct {
	Subject string
	Body    string
}

var templates = map[string]struct {
	subject string
	file    string
}{
	TemplateIdentityActivation: {subject: "Let's Confirm & Connect 🚀", file: "templates/identity_activation.html"},
}

// Load returns the named template.
func Load(name string) (Template, error) {
	def, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown email template %q", name)
	}
	body, err := templatesFS.ReadFile(def.file)
	if err != nil {
		return Template{}, fmt.Errorf("read template %q: %w", name, err)
	}
	return Template{Subject: def.subject, Body: string(body)}, nil
}

// Render substitutes ##KEY## for each entry in vars. Values are HTML-escaped.
func (t Template) Render(vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "##"+k+"##", html.EscapeString(v))
	}
	return strings.NewReplacer(pairs...).Replace(t.Body)
}

// ActivationMessage builds the identity activation mail for one recipient.
// ttl is the link lifetime shown in the body.
func ActivationMessage(sender, name, email, link string, ttl time.Duration) (domain.Message, error) {
	tpl, err := Load(TemplateIdentityActivation)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		Subject:   tpl.Subject,
		Sender:    sender,
		Recipient: email,
		HTMLBody: tpl.Render(map[string]string{
			"NAME":   name,
			"EMAIL":  email,
			"LINK":   link,
			"EXPIRY": HumanDuration(ttl),
		}),
	}, nil
}

// HumanDuration renders d in the largest whole unit among days, hours and
// minutes, falling back to Go duration syntax.
func HumanDuration(d time.Duration) string {
	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
	}
	for _, u := range units {
		if d >= u.size && d%u.size == 0 {
			n := int64(d / u.size)
			if n == 1 {
				return "1 " + u.name
			}
			return strconv.FormatInt(n, 10) + " " + u.name + "s"
		}
	}
	return d.String()
}
