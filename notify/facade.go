package notify

// ChangeEvent is the simplified event notify.Facade emits: a change to
// path, described as either a rename (create/delete/move) or a plain
// content/attribute change.
type ChangeEvent struct {
	Kind string // "rename" or "change"
	Path string
}

const (
	KindRename = "rename"
	KindChange = "change"
)

var renameBits = IN_MOVED_FROM | IN_MOVED_TO | IN_MOVE_SELF | IN_CREATE | IN_DELETE | IN_DELETE_SELF

// Facade wraps an Instance and translates its raw IN_* masks into the
// higher-level change/rename vocabulary spec §4.6 describes ("a
// higher-level façade that wraps inotify and translates masks into
// change/rename events, suppressing IN_IGNORED").
type Facade struct {
	inst    *Instance
	onEvent func(ChangeEvent)
}

// NewFacade builds a Facade whose underlying Instance delivers through
// onEvent after translation.
func NewFacade(onEvent func(ChangeEvent)) *Facade {
	f := &Facade{onEvent: onEvent}
	f.inst = NewInstance(f.translate)
	return f
}

// Instance exposes the underlying raw inotify descriptor, e.g. for
// AddWatch/RmWatch/Close.
func (f *Facade) Instance() *Instance { return f.inst }

func (f *Facade) translate(e Event) {
	if e.Mask&IN_IGNORED != 0 {
		return
	}
	kind := KindChange
	if e.Mask&renameBits != 0 {
		kind = KindRename
	}
	f.onEvent(ChangeEvent{Kind: kind, Path: e.Name})
}
