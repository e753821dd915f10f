package imports

const (
	tagRoot = "bikey"
	tagRide = "ride"
	tagLogs = "logs"
	tagLog  = "log"

	attrVersion  = "version"
	attrLogCount = "logCount"
	attrType     = "type"
)

type parserState int

const (
	stateRoot parserState = iota
	stateInRide
	stateRideCreated
	stateInLog
)

func (s parserState) String() string {
	switch s {
	case stateRoot:
		return "root"
	case stateInRide:
		return "ride"
	case stateRideCreated:
		return "ride created"
	case stateInLog:
		return "log"
	default:
		return "unknown"
	}
}

type tagKind int

const (
	tagKindRide tagKind = iota
	tagKindLogs
	tagKindLog
	tagKindReserved
	tagKindField
)

func classifyTag(name string) tagKind {
	switch name {
	case tagRide:
		return tagKindRide
	case tagLogs:
		return tagKindLogs
	case tagLog:
		return tagKindLog
	case ColumnID, ColumnRideID:
		return tagKindReserved
	default:
		return tagKindField
	}
}

type action int

const (
	actionIgnore action = iota
	actionIgnoreField
	actionStartRide
	actionCreateRide
	actionStartLog
	actionDeclareField
	actionReject
)

// step is the outcome of one start tag. reason is set for actionReject.
type step struct {
	next   parserState
	action action
	reason string
}

// transition maps every (state, tag) pair to the next state and the action
// to run. A ride tag restarts the ride map from any state. A rejected tag
// leaves the state unchanged.
func transition(state parserState, tag tagKind) step {
	if tag == tagKindReserved {
		return step{next: state, action: actionIgnore}
	}

	switch state {
	case stateRoot:
		switch tag {
		case tagKindRide:
			return step{next: stateInRide, action: actionStartRide}
		case tagKindLogs:
			return step{next: state, action: actionReject, reason: "logs marker outside of a ride"}
		case tagKindLog:
			return step{next: state, action: actionReject, reason: "log outside of a ride"}
		default:
			return step{next: state, action: actionIgnore}
		}

	case stateInRide:
		switch tag {
		case tagKindRide:
			return step{next: stateInRide, action: actionStartRide}
		case tagKindLogs:
			return step{next: stateRideCreated, action: actionCreateRide}
		case tagKindLog:
			return step{next: state, action: actionReject, reason: "log before the logs marker"}
		default:
			return step{next: state, action: actionDeclareField}
		}

	case stateRideCreated:
		switch tag {
		case tagKindRide:
			return step{next: stateInRide, action: actionStartRide}
		case tagKindLogs:
			return step{next: state, action: actionReject, reason: "duplicate logs marker"}
		case tagKindLog:
			return step{next: stateInLog, action: actionStartLog}
		default:
			return step{next: state, action: actionIgnoreField}
		}

	case stateInLog:
		switch tag {
		case tagKindRide:
			return step{next: stateInRide, action: actionStartRide}
		case tagKindLogs:
			return step{next: state, action: actionReject, reason: "duplicate logs marker"}
		case tagKindLog:
			return step{next: stateInLog, action: actionStartLog}
		default:
			return step{next: state, action: actionDeclareField}
		}
	}

	return step{next: state, action: actionReject, reason: "unknown parser state"}
}
