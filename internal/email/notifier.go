package email

import (
	"context"
	"fmt"
	"html"

	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/license"
)

// Directory resolves a user id to their email address.
type Directory interface {
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// LicenseNotifier emails customers their license key after issuance. It
// implements license.Notifier.
type LicenseNotifier struct {
	sender    Sender
	directory Directory
}

func NewLicenseNotifier(sender Sender, directory Directory) *LicenseNotifier {
	return &LicenseNotifier{sender: sender, directory: directory}
}

func (n *LicenseNotifier) LicenseIssued(ctx context.Context, l *license.License) error {
	to, err := n.directory.EmailFor(ctx, l.UserID)
	if err != nil {
		return fmt.Errorf("resolve customer email: %w", err)
	}

	body := fmt.Sprintf(
		`<p>Your license for <strong>%s</strong> is ready.</p>
<p>License key: <code>%s</code></p>
<p>The license is valid until %s. Enter the key in the EA inputs on your MT5 terminal to activate it.</p>`,
		html.EscapeString(l.ProductCode),
		html.EscapeString(l.Key),
		l.ExpiresAt.Format("January 2, 2006"),
	)

	return n.sender.SendEmail(ctx, SendParams{
		To:       to,
		Subject:  "Your " + l.ProductCode + " license key",
		BodyHTML: body,
		Tag:      "license-issued",
	})
}
