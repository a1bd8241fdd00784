package checkout

// State is a step of the checkout run. Runs only move forward through the states.
type State string

const (
	StateSessionStart        State = "SessionStart"
	StateLoggingIn           State = "LoggingIn"
	StateAddingItems         State = "AddingItems"
	StateCheckout            State = "Checkout"
	StateSelectingPayment    State = "SelectingPayment"
	StateReadingTotal        State = "ReadingTotal"
	StatePlacingOrder        State = "PlacingOrder"
	StateReadingConfirmation State = "ReadingConfirmation"
	StateCompleted           State = "Completed"
	StateFailed              State = "Failed"
)

func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s State) String() string {
	return string(s)
}
