/*
Package dsl provides a fluent builder for call flows.

It is mostly used by tests and examples that need a flow without going through
the editor one mutation at a time.

	flow, err := dsl.New("reminder", "Appointment reminder").
		Start("root", "Hi (name), calling about your visit on {date}.").
		Branch("yes", "confirm").
		Branch("human", "agent").
		Flow()

Nodes are added with Start, Ask, Say, Capture, Transfer and End; Branch always
attaches to the node added last. Flow runs the structural checks and returns
the first set of problems as one error.
*/
package dsl
