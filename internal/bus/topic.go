package bus

// Topic is a single upstream producer's message stream. Channel/bridge/
// parking subsystems (and the CEL-owned publish topic) each get their
// own Topic; Bus.Subscribe forwards every Topic into the one aggregation
// channel the dispatcher reads from.
type Topic struct {
	ch chan Message
}

// NewTopic creates a Topic with the given buffer size. A producer that
// outruns the dispatcher blocks on Publish rather than silently
// dropping -- backpressure is accepted so a slow backend backs up the
// whole pipeline instead of losing events.
func NewTopic(buffer int) *Topic {
	return &Topic{ch: make(chan Message, buffer)}
}

// Publish enqueues m on the topic.
func (t *Topic) Publish(m Message) {
	t.ch <- m
}

// Close closes the topic's channel. Callers must not Publish after Close.
func (t *Topic) Close() {
	close(t.ch)
}
