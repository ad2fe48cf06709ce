package ink

// EventType distinguishes the three phases of a stroke gesture.
type EventType string

const (
	EventBegin EventType = "begin"
	EventMove  EventType = "move"
	EventEnd   EventType = "end"
)

// PointerEvent is the unified input the surface consumes. Mouse and touch
// input both end up here so the drawing logic exists once.
type PointerEvent struct {
	Type EventType
	At   Point
}

// NormalizeTouch maps a touch gesture onto the equivalent pointer event.
// Only the first touch point is considered; an end gesture carries no
// coordinates. Returns false when the gesture has no usable point.
func NormalizeTouch(kind EventType, touches []Point) (PointerEvent, bool) {
	if kind == EventEnd {
		return PointerEvent{Type: EventEnd}, true
	}
	if len(touches) == 0 {
		return PointerEvent{}, false
	}
	return PointerEvent{Type: kind, At: touches[0]}, true
}

// Apply dispatches a pointer event onto the surface.
func Apply(s *Surface, ev PointerEvent) {
	switch ev.Type {
	case EventBegin:
		s.BeginStroke(ev.At)
	case EventMove:
		s.ExtendStroke(ev.At)
	case EventEnd:
		s.EndStroke()
	}
}
