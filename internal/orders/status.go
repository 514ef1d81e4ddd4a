package orders

type Status string

const (
	StatusInCart    Status = "IN_CART"
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Checkout completes IN_CART rows directly; the PENDING hop is optional.
var validNext = map[Status]map[Status]bool{
	StatusInCart:    {StatusPending: true, StatusCompleted: true, StatusCancelled: true},
	StatusPending:   {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TransitionSources lists the states a row may be in for a guarded UPDATE
// moving it to the given state.
func TransitionSources(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusInCart, StatusPending, StatusCompleted, StatusCancelled} {
		if validNext[from][to] {
			out = append(out, from)
		}
	}
	return out
}
