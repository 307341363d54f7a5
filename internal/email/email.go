// Package email sends transactional mail through Postmark: license delivery,
// support replies, and EA development decisions.
package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

var (
	ErrInvalidConfig     = errors.New("email: invalid config")
	ErrFailedToSendEmail = errors.New("email: failed to send")
)

// Sender delivers one email.
type Sender interface {
	SendEmail(ctx context.Context, params SendParams) error
}

// SendParams is one outbound message.
type SendParams struct {
	To       string
	Subject  string
	BodyHTML string
	Tag      string
}

// Config carries the Postmark tokens and addresses.
type Config struct {
	ServerToken  string
	AccountToken string
	FromAddress  string
	ReplyTo      string
}

type postmarkSender struct {
	client *postmark.Client
	cfg    Config
}

// NewPostmarkSender creates a Postmark-backed sender. Both tokens and the
// sender address are required.
func NewPostmarkSender(cfg Config) (Sender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: server token is required", ErrInvalidConfig)
	}
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("%w: from address is required", ErrInvalidConfig)
	}
	return &postmarkSender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		cfg:    cfg,
	}, nil
}

func (s *postmarkSender) SendEmail(ctx context.Context, params SendParams) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.cfg.FromAddress,
		ReplyTo:    s.cfg.ReplyTo,
		To:         params.To,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
