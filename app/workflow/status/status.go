package status

var (
	// UNKNOWN Task status could not be determined. Never a valid target.
	UNKNOWN = "Unknown"

	// CREATED Task execution object exists but nothing has been sent out yet.
	CREATED = "Created"

	// DISPATCHED Task has been published to the task manager.
	DISPATCHED = "Dispatched"

	// ACCEPTED Task manager admitted the task and handed it to a runner.
	ACCEPTED = "Accepted"

	// SUCCEEDED Task finished and all mandatory outputs are present.
	SUCCEEDED = "Succeeded"

	// FAILED Task finished unsuccessfully.
	FAILED = "Failed"

	// PARTIALFAIL Task finished with some of its exports failing.
	PARTIALFAIL = "PartialFail"

	// CANCELED Task was cancelled, usually by timeout.
	CANCELED = "Canceled"

	_ALL = []string{
		UNKNOWN, CREATED, DISPATCHED, ACCEPTED,
		SUCCEEDED, FAILED, PARTIALFAIL, CANCELED,
	}

	// DoneStates count as complete when rolling a workflow instance up to
	// Succeeded.
	DoneStates = []string{
		SUCCEEDED, CANCELED, PARTIALFAIL,
	}

	TerminalStates = []string{
		SUCCEEDED, FAILED, PARTIALFAIL, CANCELED,
	}

	// invalidSources maps a target status to the set of current statuses a
	// task must NOT be in for the update to apply. The table is asymmetric
	// on purpose: Accepted is only reachable from Dispatched, Created is
	// never reachable by update, and Unknown is never a valid target.
	invalidSources = map[string][]string{
		CREATED:     {CREATED, DISPATCHED, ACCEPTED, SUCCEEDED, FAILED, PARTIALFAIL, CANCELED, UNKNOWN},
		DISPATCHED:  {DISPATCHED, SUCCEEDED, FAILED, PARTIALFAIL, CANCELED, UNKNOWN},
		ACCEPTED:    {ACCEPTED, CREATED, SUCCEEDED, FAILED, PARTIALFAIL, CANCELED, UNKNOWN},
		SUCCEEDED:   {SUCCEEDED, FAILED},
		FAILED:      {SUCCEEDED, FAILED},
		PARTIALFAIL: {SUCCEEDED, FAILED},
		CANCELED:    {SUCCEEDED, FAILED},
	}
)

// IsValidTransition reports whether a task currently in oldStatus may be
// updated to newStatus.
func IsValidTransition(oldStatus, newStatus string) bool {
	invalid, ok := invalidSources[newStatus]
	if !ok {
		return false
	}
	for _, s := range invalid {
		if s == oldStatus {
			return false
		}
	}
	return true
}

func IsDone(state string) bool {
	for _, s := range DoneStates {
		if s == state {
			return true
		}
	}
	return false
}

func IsTerminal(state string) bool {
	for _, s := range TerminalStates {
		if s == state {
			return true
		}
	}
	return false
}

func IsCreated(state string) bool {
	return state == CREATED
}

func IsDispatched(state string) bool {
	return state == DISPATCHED
}

func IsAccepted(state string) bool {
	return state == ACCEPTED
}

func IsSucceeded(state string) bool {
	return state == SUCCEEDED
}

func IsFailed(state string) bool {
	return state == FAILED
}

func IsCanceled(state string) bool {
	return state == CANCELED
}
