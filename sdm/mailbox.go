package sdm

// Mailbox is a single slot channel carrying the latest control word from
// the control loop to the modulator task. A send replaces any unread word;
// neither side ever blocks.
type Mailbox struct {
	ch chan int32
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan int32, 1)}
}

// Publish stores v, discarding a word the receiver has not picked up yet.
func (m *Mailbox) Publish(v int32) {
	for {
		select {
		case m.ch <- v:
			return
		default:
		}
		// Slot is full: drop the stale word and retry
		select {
		case <-m.ch:
		default:
		}
	}
}

// TryReceive returns the pending word, if any.
func (m *Mailbox) TryReceive() (int32, bool) {
	select {
	case v := <-m.ch:
		return v, true
	default:
		return 0, false
	}
}
