package engine

import "github.com/rupeevault/backend/internal/models"

// Per-kind transition tables. The deposit and withdrawal lifecycles share
// the pending/completed/rejected skeleton and diverge in the middle, so the
// engine dispatches on the request kind rather than subtyping the request.
var transitions = map[models.RequestKind]map[models.RequestStatus][]models.RequestStatus{
	models.KindWithdrawal: {
		models.StatusPending:    {models.StatusHeld, models.StatusProcessing, models.StatusRejected},
		models.StatusHeld:       {models.StatusProcessing, models.StatusRejected},
		models.StatusProcessing: {models.StatusCompleted, models.StatusFailed, models.StatusHeld, models.StatusRejected},
		models.StatusFailed:     {models.StatusPending, models.StatusProcessing, models.StatusRejected},
	},
	models.KindDeposit: {
		models.StatusPending: {models.StatusCompleted, models.StatusRejected},
	},
}

func canTransition(kind models.RequestKind, from, to models.RequestStatus) bool {
	for _, allowed := range transitions[kind][from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// reservationHeld reports whether a withdrawal in the given status still has
// its amount reserved in blocked. Funds are reserved at submission and stay
// blocked through pending, held and processing; fail and reject release them.
func reservationHeld(kind models.RequestKind, status models.RequestStatus) bool {
	if kind != models.KindWithdrawal {
		return false
	}
	switch status {
	case models.StatusPending, models.StatusHeld, models.StatusProcessing:
		return true
	}
	return false
}
