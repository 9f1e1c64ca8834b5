package metrics

// Counter accumulates a value that only goes up: events enqueued, sends failed.
type Counter interface {
	Metrics
	// IncrWithDim increments the counter by delta for the given dimensions.
	IncrWithDim(delta Value, dimensions Dimension)
	// Incr increments the counter by delta.
	Incr(delta Value)
}

type counter struct {
	name  string
	group string
}

func (c *counter) Name() string {
	return c.name
}

func (c *counter) Group() string {
	return c.group
}

func (c *counter) Policy() Policy {
	return Policy_Sum
}

func (c *counter) Incr(v Value) {
	c.IncrWithDim(v, nil)
}

func (c *counter) IncrWithDim(v Value, dimensions Dimension) {
	report(Record{
		metrics:    c,
		value:      v,
		dimensions: dimensions,
	})
}
