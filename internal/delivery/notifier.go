// Package delivery hands relayed notifications to the user-facing channel.
package delivery

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"

	"github.com/domestiq/bookingcore/internal/kafka"
	kafkaGo "github.com/segmentio/kafka-go"
)

// Notifier is the console sink used until a push provider is wired in.
type Notifier struct {
	logger *log.Logger
}

func NewNotifier(w io.Writer) *Notifier {
	if w == nil {
		w = os.Stdout
	}
	return &Notifier{logger: log.New(w, "", log.LstdFlags)}
}

func (n *Notifier) Send(ctx context.Context, msg kafka.NotificationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.Printf("notify user=%s type=%s title=%q body=%q url=%s", msg.UserID, msg.Type, msg.Title, msg.Body, msg.ActionURL)
	return nil
}

// Handle decodes one relayed message. Undecodable messages are logged and skipped so a bad
// record cannot stall the partition.
func (n *Notifier) Handle(ctx context.Context, m kafkaGo.Message) error {
	var msg kafka.NotificationMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		log.Printf("WARNING: decode notification at offset %d: %v", m.Offset, err)
		return nil
	}
	return n.Send(ctx, msg)
}
