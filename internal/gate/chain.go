package gate

// Decision is one gate's verdict on one request, as reported to an Observer.
type Decision struct {
	Gate    string
	Request *Request
	Result  Result
}

// Observer receives every gate decision made by a Chain.
type Observer interface {
	Observe(d Decision)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(d Decision)

func (f ObserverFunc) Observe(d Decision) { f(d) }

// Chain runs gates in declared order and stops at the first rejection.
// It is immutable after construction; gates own their own state.
type Chain struct {
	gates     []Gate
	observers []Observer
}

// NewChain creates a chain over gates, in order.
func NewChain(gates ...Gate) *Chain {
	return &Chain{gates: append([]Gate(nil), gates...)}
}

// WithObservers returns a copy of the chain that reports decisions to obs.
func (c *Chain) WithObservers(obs ...Observer) *Chain {
	return &Chain{
		gates:     c.gates,
		observers: append(append([]Observer(nil), c.observers...), obs...),
	}
}

// Gates returns the gate names in evaluation order.
func (c *Chain) Gates() []string {
	names := make([]string, len(c.gates))
	for i, g := range c.gates {
		names[i] = g.Name()
	}
	return names
}

// Evaluate runs the chain against req.
func (c *Chain) Evaluate(req *Request) Result {
	for _, g := range c.gates {
		res := g.Evaluate(req)
		for _, o := range c.observers {
			o.Observe(Decision{Gate: g.Name(), Request: req, Result: res})
		}
		if !res.Passed() {
			return res
		}
	}
	return Pass()
}

// Close releases background resources held by gates that have any.
func (c *Chain) Close() {
	for _, g := range c.gates {
		if cl, ok := g.(interface{ Close() }); ok {
			cl.Close()
		}
	}
}
