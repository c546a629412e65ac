package ledger

// RecordCost is the single cost-accounting choke point every node handler
// and provider call goes through: it guards the delta against budget,
// records the entry if a ledger is wired, and only then mutates state, in
// that order.
//
// budget and state are both nil when the caller was built without budget
// enforcement (e.g. a handler running outside the bus worker, such as a
// one-off demo script); in that case only the ledger recording happens.
func RecordCost(l Ledger, budget *Budget, state *State, entry Entry) error {
	if budget != nil && state != nil {
		if err := Guard(*budget, state, entry.Dollars, entry.Provider, 1); err != nil {
			return err
		}
	}

	if l != nil {
		l.Record(entry)
	}

	if budget != nil && state != nil {
		state.Apply(entry.Dollars, entry.Provider, 1)
	}

	return nil
}
