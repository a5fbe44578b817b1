// Package relay sends templated email through the EmailJS REST API.
package relay

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/api"
	"github.com/cyberfolio/folio-core/logger"
	"github.com/cyberfolio/folio-core/sanitize"
)

// DefaultEndpoint is the EmailJS API root.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0"

const sendPath = "/email/send"

// ErrNotConfigured is returned by Send when the service, template or key is missing.
var ErrNotConfigured = errors.New("email relay is not configured")

type Config struct {
	Endpoint            string          `yaml:"endpoint"`
	ServiceID           string          `yaml:"service_id"`
	TemplateID          string          `yaml:"template_id"`
	AutoReplyTemplateID string          `yaml:"auto_reply_template_id"`
	PublicKey           string          `yaml:"public_key"`
	PrivateKey          sanitize.Secret `yaml:"private_key"`
}

// Configured reports whether enough is set to send the owner notification.
func (c Config) Configured() bool {
	return c.ServiceID != "" && c.TemplateID != "" && c.PublicKey != ""
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

type Client struct {
	config Config
	api    *api.Client
	logger logger.Logger
}

func New(log logger.Logger, config Config, opts ...api.Option) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	log = log.WithPrefix("[relay]")
	return &Client{
		config: config,
		api:    api.New(log, config.Endpoint, opts...),
		logger: log,
	}
}

func (c *Client) Config() Config {
	return c.config
}

func (c *Client) Configured() bool {
	return c.config.Configured()
}

// Send delivers one email rendered from templateID. Failures are *api.Error
// values marked with the resilience.Kind of the upstream response.
func (c *Client) Send(ctx context.Context, templateID string, params map[string]string) error {
	if !c.Configured() || templateID == "" {
		return ErrNotConfigured
	}
	req := sendRequest{
		ServiceID:      c.config.ServiceID,
		TemplateID:     templateID,
		UserID:         c.config.PublicKey,
		AccessToken:    c.config.PrivateKey.Text(),
		TemplateParams: params,
	}
	var raw []byte
	if err := c.api.Do(ctx, "POST", sendPath, req, &raw); err != nil {
		return err
	}
	c.logger.Debug("sent template %s (%s)", templateID, string(raw))
	return nil
}
