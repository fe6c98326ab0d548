package client

// Policy decides what happens when a request fails for good: after retries
// are exhausted or admission rejects it.
type Policy int

const (
	// PolicyDefault resolves to PolicyRaise for single calls and
	// PolicyAdaptive inside fan-outs.
	PolicyDefault Policy = iota

	// PolicyRaise turns the failure into an error.
	PolicyRaise

	// PolicySuppress swallows the failure: the call returns (nil, nil).
	PolicySuppress

	// PolicyAdaptive returns the failed response envelope while the error
	// budget is healthy and escalates to an error once it runs low. Lets a
	// large fan-out absorb scattered failures without masking a meltdown.
	PolicyAdaptive
)

func (p Policy) String() string {
	switch p {
	case PolicyRaise:
		return "raise"
	case PolicySuppress:
		return "suppress"
	case PolicyAdaptive:
		return "adaptive"
	default:
		return "default"
	}
}

// resolve maps PolicyDefault onto a concrete policy for the calling context.
func (p Policy) resolve(fanout bool) Policy {
	if p != PolicyDefault {
		return p
	}
	if fanout {
		return PolicyAdaptive
	}
	return PolicyRaise
}
