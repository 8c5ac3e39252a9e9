package bus

// Handler processes one dispatched Message. Handlers must be fast and
// non-blocking: they run inline on the dispatcher goroutine, and a
// blocking handler stalls every subsequent message.
type Handler func(Message)

// Router maps a message kind tag to exactly one Handler.
type Router struct {
	handlers     map[string]Handler
	onUnroutable func(kind string)
}

// NewRouter creates an empty Router. onUnroutable, if non-nil, is called
// for any dispatched message whose Kind() has no registered handler --
// this should never happen once the engine has wired every translator,
// but it is not a reason to crash the host platform.
func NewRouter(onUnroutable func(kind string)) *Router {
	return &Router{handlers: make(map[string]Handler), onUnroutable: onUnroutable}
}

// Register installs h as the handler for kind, replacing any prior
// handler for the same kind.
func (r *Router) Register(kind string, h Handler) {
	r.handlers[kind] = h
}

// Dispatch routes m to its registered handler.
func (r *Router) Dispatch(m Message) {
	h, ok := r.handlers[m.Kind()]
	if !ok {
		if r.onUnroutable != nil {
			r.onUnroutable(m.Kind())
		}
		return
	}
	h(m)
}
