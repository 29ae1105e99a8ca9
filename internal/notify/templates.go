package notify

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultSubject = "New Contact Form Submission"

const DefaultBody = `<h2>New Contact Form Submission</h2>

<p><strong>Name:</strong> {{first_name}} {{last_name}}</p>
<p><strong>Email:</strong> {{email}}</p>
<p><strong>Subject:</strong> {{subject}}</p>
<p><strong>Message:</strong></p>
<p>{{message}}</p>

<hr>
<p><strong>CRM Status:</strong> {{crm_status}}</p>
{{#if crm_contact_id}}<p><strong>CRM Contact ID:</strong> {{crm_contact_id}}</p>{{/if}}
{{#if crm_error}}<p><strong>CRM Error:</strong> {{crm_error}}</p>{{/if}}

<p><em>This message was sent from your website contact form.</em></p>`

const DefaultAlert = `Contact form CRM delivery failed
Name: {{first_name}} {{last_name}}
Email: {{email}}
Subject: {{subject}}
{{#if crm_error}}Error: {{crm_error}}{{/if}}`

// Templates is the set of notification templates. Empty fields fall back to
// the defaults.
type Templates struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
	Alert   string `yaml:"alert"`
}

func DefaultTemplates() Templates {
	return Templates{Subject: DefaultSubject, Body: DefaultBody, Alert: DefaultAlert}
}

// LoadTemplates reads a YAML template file. An empty path yields the defaults.
func LoadTemplates(path string) (Templates, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTemplates(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("notify: read templates: %w", err)
	}
	var t Templates
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Templates{}, fmt.Errorf("notify: parse templates: %w", err)
	}
	return t.withDefaults(), nil
}

func (t Templates) withDefaults() Templates {
	d := DefaultTemplates()
	if strings.TrimSpace(t.Subject) == "" {
		t.Subject = d.Subject
	}
	if strings.TrimSpace(t.Body) == "" {
		t.Body = d.Body
	}
	if strings.TrimSpace(t.Alert) == "" {
		t.Alert = d.Alert
	}
	return t
}

var ErrNotConfigured = errors.New("notify: sender not configured")
