package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

// LogNotifier writes confirmations to the log. Used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
	sender string
}

func NewLogNotifier(logger *zap.Logger, sender string) *LogNotifier {
	if sender == "" {
		sender = DefaultSender
	}
	return &LogNotifier{logger: logger, sender: sender}
}

func (n *LogNotifier) SendOrderConfirmation(ctx context.Context, c domain.OrderConfirmation) error {
	msg := NewConfirmationMessage(n.sender, c)
	n.logger.Info("order confirmation",
		zap.String("order_id", msg.OrderID),
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("total", msg.Total),
	)
	return nil
}
