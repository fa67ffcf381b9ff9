package transfer

import (
	"encoding/json"
	"fmt"

	natsutil "github.com/kthomas/go-natsutil"
	uuid "github.com/kthomas/go.uuid"
	"github.com/nats-io/nats.go"
)

const natsTransferNotificationHopExecuted = "hop.executed"
const natsTransferNotificationFinalized = "finalized"
const natsTransferNotificationRefunded = "refunded"
const natsTransferNotificationRevealFake = "reveal_fake"

// Notifier broadcasts lifecycle events for one transfer over NATS
// Jetstream, the way prover/notifications.go broadcasts proof lifecycle
// events. It is optional -- every method is a no-op on a nil
// *Notifier, so the state machine can run in tests without a NATS
// connection.
type Notifier struct{}

// NewNotifier constructs a Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) dispatch(id uuid.UUID, event string, payload map[string]interface{}) (*nats.PubAck, error) {
	if event == "" {
		return nil, fmt.Errorf("failed to dispatch event notification for transfer %s", id.String())
	}
	subject := n.notificationsSubject(id, event)
	body, _ := json.Marshal(payload)
	return natsutil.NatsJetstreamPublish(subject, body)
}

func (n *Notifier) notificationsSubject(id uuid.UUID, suffix string) string {
	prefix := fmt.Sprintf("transfercore.transfer.notification.%s", id.String())
	if suffix == "" {
		return prefix
	}
	return fmt.Sprintf("%s.%s", prefix, suffix)
}

// HopExecuted announces that hop advanced to currentHop.
func (n *Notifier) HopExecuted(id uuid.UUID, currentHop uint8, realCount int) {
	if n == nil {
		return
	}
	n.dispatch(id, natsTransferNotificationHopExecuted, map[string]interface{}{
		"current_hop": currentHop,
		"real_splits": realCount,
	})
}

// Finalized announces that a transfer completed and paid out.
func (n *Notifier) Finalized(id uuid.UUID, recipientCount int) {
	if n == nil {
		return
	}
	n.dispatch(id, natsTransferNotificationFinalized, map[string]interface{}{
		"recipient_count": recipientCount,
	})
}

// Refunded announces that a transfer's refund guard fired.
func (n *Notifier) Refunded(id uuid.UUID, amount uint64) {
	if n == nil {
		return
	}
	n.dispatch(id, natsTransferNotificationRefunded, map[string]interface{}{
		"amount": amount,
	})
}

// RevealFakeApplied announces that a reveal_fake witness repaired the
// decoy registry for (hop, split).
func (n *Notifier) RevealFakeApplied(id uuid.UUID, hop, split uint8) {
	if n == nil {
		return
	}
	n.dispatch(id, natsTransferNotificationRevealFake, map[string]interface{}{
		"hop":   hop,
		"split": split,
	})
}
