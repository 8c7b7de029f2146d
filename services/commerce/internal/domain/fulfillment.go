package domain

import "slices"

// FineStatus is the per-modality fulfillment status sellers advance.
type FineStatus string

const (
	FineOrdered           FineStatus = "ORDERED"
	FineBillingCompleted  FineStatus = "BILLING_COMPLETED"
	FineConfirmed         FineStatus = "CONFIRMED"
	FineProductionStarted FineStatus = "PRODUCTION_STARTED"
	FineShippedOut        FineStatus = "SHIPPED_OUT"
	FineShipping          FineStatus = "SHIPPING"
	FineArrived           FineStatus = "ARRIVED"
	FineReceived          FineStatus = "RECEIVED"
)

type FineTrack struct {
	Type        ProductType
	steps       []FineStatus
	transitions map[FineStatus][]FineStatus
	// set only by the settlement engine, never through the seller interface
	systemOnly map[FineStatus]bool
}

func newFineTrack(t ProductType, systemOnly []FineStatus, steps ...FineStatus) *FineTrack {
	tr := &FineTrack{
		Type:        t,
		steps:       steps,
		transitions: make(map[FineStatus][]FineStatus, len(steps)),
		systemOnly:  make(map[FineStatus]bool, len(systemOnly)),
	}
	for i, s := range steps {
		tr.transitions[s] = slices.Clone(steps[i+1:])
	}
	for _, s := range systemOnly {
		tr.systemOnly[s] = true
	}
	return tr
}

var (
	PreorderTrack = newFineTrack(ProductPreOrder, nil,
		FineOrdered, FineConfirmed, FineProductionStarted, FineShippedOut, FineShipping, FineArrived, FineReceived)
	CrowdfundTrack = newFineTrack(ProductCrowdfund, []FineStatus{FineBillingCompleted},
		FineOrdered, FineBillingCompleted, FineConfirmed, FineProductionStarted, FineShippedOut, FineShipping, FineArrived, FineReceived)
)

func TrackFor(t ProductType) (*FineTrack, bool) {
	switch t {
	case ProductPreOrder:
		return PreorderTrack, true
	case ProductCrowdfund:
		return CrowdfundTrack, true
	}
	return nil, false
}

func (t *FineTrack) Initial() FineStatus {
	return t.steps[0]
}

func (t *FineTrack) Steps() []FineStatus {
	return slices.Clone(t.steps)
}

func (t *FineTrack) Contains(s FineStatus) bool {
	_, ok := t.transitions[s]
	return ok
}

// CanAdvance reports whether to lies strictly after from on this track.
func (t *FineTrack) CanAdvance(from, to FineStatus) bool {
	return slices.Contains(t.transitions[from], to)
}

// SellerCanSet excludes the initial status and statuses only the system may set.
func (t *FineTrack) SellerCanSet(s FineStatus) bool {
	return t.Contains(s) && s != t.Initial() && !t.systemOnly[s]
}

func (t *FineTrack) rank(s FineStatus) int {
	return slices.Index(t.steps, s)
}

// LifecycleFor maps a fine status to the lifecycle status it implies, if any.
func (t *FineTrack) LifecycleFor(s FineStatus) (OrderStatus, bool) {
	switch {
	case s == FineReceived:
		return OrderDelivered, true
	case t.rank(s) >= t.rank(FineShippedOut):
		return OrderShipped, true
	}
	return "", false
}
