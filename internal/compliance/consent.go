package compliance

type ConsentState string

const (
	Subscribed ConsentState = "subscribed"
	OptedOut   ConsentState = "opted_out"
)

// Transition is the outcome of applying one classified inbound message.
type Transition struct {
	From    ConsentState
	To      ConsentState
	Changed bool

	// Audit is set for every opt-out and help verdict, including repeats.
	Audit bool
}

// Apply runs the consent state machine. Only an opt-out moves state, and
// only from subscribed; nothing here returns a contact to subscribed.
func Apply(from ConsentState, c Classification) Transition {
	if from == "" {
		from = Subscribed
	}
	t := Transition{From: from, To: from}
	switch c {
	case ClassOptOut:
		t.To = OptedOut
		t.Changed = from != OptedOut
		t.Audit = true
	case ClassHelp:
		t.Audit = true
	}
	return t
}
