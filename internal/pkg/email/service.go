package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/rs/zerolog/log"
)

// Transport delivers a rendered message
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// Service renders named templates inside the base layout and sends them
type Service struct {
	transport    Transport
	templates    map[string]*template.Template
	baseTemplate *template.Template
}

// NewService creates email service
func NewService(transport Transport) *Service {
	s := &Service{
		transport:    transport,
		templates:    make(map[string]*template.Template),
		baseTemplate: template.Must(template.New("base").Parse(BaseTemplate)),
	}

	for name, content := range map[string]string{
		TemplateCreditsExpiring: CreditsExpiringTemplate,
	} {
		tmpl, err := template.New(name).Parse(content)
		if err != nil {
			log.Error().Err(err).Str("template", name).Msg("Failed to parse email template")
			continue
		}
		s.templates[name] = tmpl
	}
	return s
}

// SendTemplate renders templateName with data and sends it synchronously
func (s *Service) SendTemplate(ctx context.Context, to, toName, templateName, subject string, data interface{}) error {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return fmt.Errorf("template %s not found", templateName)
	}

	var content bytes.Buffer
	if err := tmpl.Execute(&content, data); err != nil {
		return fmt.Errorf("render %s: %w", templateName, err)
	}

	var html bytes.Buffer
	if err := s.baseTemplate.Execute(&html, map[string]interface{}{
		"Content": template.HTML(content.String()),
	}); err != nil {
		return fmt.Errorf("render base layout: %w", err)
	}

	return s.transport.Send(ctx, &Message{
		To:          to,
		ToName:      toName,
		Subject:     subject,
		HTMLContent: html.String(),
	})
}
