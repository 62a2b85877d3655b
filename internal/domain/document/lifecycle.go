// internal/domain/document/lifecycle.go
package document

import (
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
)

// Action is a requested lifecycle transition
type Action string

const (
	ActionApprove Action = "approve"
	ActionPost    Action = "post"
	ActionReverse Action = "reverse"
)

type lifecycle int

const (
	// orderLifecycle: draft -> approved -> posted (PO, SO)
	orderLifecycle lifecycle = iota
	// directLifecycle: draft -> posted (GR, Shipment)
	directLifecycle
)

func (k Kind) lifecycle() lifecycle {
	switch k {
	case KindPurchaseOrder, KindSalesOrder:
		return orderLifecycle
	case KindGoodsReceipt, KindShipment:
		return directLifecycle
	}
	panic("document: unknown kind " + string(k))
}

// PostableStatus is the status a document must be in to be posted
func (k Kind) PostableStatus() Status {
	if k.lifecycle() == orderLifecycle {
		return StatusApproved
	}
	return StatusDraft
}

// next resolves every (lifecycle, status, action) triple in one place
func (l lifecycle) next(from Status, action Action) (Status, bool) {
	switch action {
	case ActionApprove:
		if l == orderLifecycle && from == StatusDraft {
			return StatusApproved, true
		}
	case ActionPost:
		switch l {
		case orderLifecycle:
			if from == StatusApproved {
				return StatusPosted, true
			}
		case directLifecycle:
			if from == StatusDraft {
				return StatusPosted, true
			}
		}
	case ActionReverse:
		if from == StatusPosted {
			return StatusReversed, true
		}
	}
	return from, false
}

// Transition returns the status reached by applying action, or an InvalidStateError
func Transition(kind Kind, from Status, action Action) (Status, error) {
	if !kind.IsValid() {
		return from, apperror.Validation("unknown document kind %q", kind)
	}
	to, ok := kind.lifecycle().next(from, action)
	if !ok {
		return from, apperror.InvalidState("cannot %s %s document in status %s", action, kind, from)
	}
	return to, nil
}
