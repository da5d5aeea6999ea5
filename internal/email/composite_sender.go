package email

import (
	"context"
	"errors"
	"fmt"
)

// CompositeSender fans a message out to several senders.
type CompositeSender struct {
	senders []Sender
}

func NewCompositeSender(senders ...Sender) *CompositeSender {
	cs := &CompositeSender{}
	for _, s := range senders {
		cs.AddSender(s)
	}
	return cs
}

// AddSender ignores nil senders.
func (cs *CompositeSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

// Send calls every sender and joins their errors.
func (cs *CompositeSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(cs.senders) == 0 {
		return fmt.Errorf("no senders configured")
	}
	var errs []error
	for _, sender := range cs.senders {
		if err := sender.Send(ctx, to, subject, rawMessage); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("composite email send failed: %w", err)
	}
	return nil
}
