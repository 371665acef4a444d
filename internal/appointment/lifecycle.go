package appointment

import "fmt"

// transitions lists the statuses reachable from each status. Terminal statuses have no entry.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusCompleted, StatusCanceled},
}

func ParseStatus(s string) (AppointmentStatus, bool) {
	status := AppointmentStatus(s)
	switch status {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCanceled:
		return status, true
	}
	return "", false
}

func (s AppointmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition decides the status an appointment moves to when target is requested.
// Requesting the current status succeeds with changed=false.
func Transition(current, target AppointmentStatus) (next AppointmentStatus, changed bool, err error) {
	if current == target {
		return current, false, nil
	}
	if !CanTransition(current, target) {
		return current, false, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current, target)
	}
	return target, true, nil
}
