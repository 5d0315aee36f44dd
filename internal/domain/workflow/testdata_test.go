package workflow

const (
	stateDraft    StateCode = "DRAFT"
	statePending  StateCode = "PENDING"
	stateApproved StateCode = "APPROVED"
	stateRejected StateCode = "REJECTED"
	stateArchived StateCode = "ARCHIVED"
)

// documentTopology is the DRAFT -> PENDING -> APPROVED flow with PENDING
// rejecting to REJECTED
func documentTopology() *Topology {
	return NewBuilder("document").
		Permit(stateDraft, statePending).
		PermitIf(statePending, stateApproved, "approvePending").
		Reject(statePending, stateRejected).
		Complete(stateApproved).
		MustBuild()
}

func allow(string) bool { return true }

func deny(string) bool { return false }
