package status

// Workflow instance level statuses. Failed is sticky: once an instance
// fails, later task updates never move it back.
var (
	InstanceCreated   = "Created"
	InstanceSucceeded = "Succeeded"
	InstanceFailed    = "Failed"
)

func IsInstanceTerminal(state string) bool {
	return state == InstanceSucceeded || state == InstanceFailed
}
