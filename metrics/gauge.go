package metrics

// Gauge is a point-in-time value that can go up or down, such as queue depth.
type Gauge interface {
	Metrics
	// Update sets the gauge's absolute value.
	Update(value Value)
	// UpdateWithDim sets the gauge's absolute value for the given dimensions.
	UpdateWithDim(value Value, dimensions Dimension)
}

type gauge struct {
	name  string
	group string
}

func (g *gauge) Name() string {
	return g.name
}

func (g *gauge) Group() string {
	return g.group
}

// Policy is Policy_Set: the last value wins.
func (g *gauge) Policy() Policy {
	return Policy_Set
}

func (g *gauge) Update(v Value) {
	g.UpdateWithDim(v, nil)
}

func (g *gauge) UpdateWithDim(v Value, dimensions Dimension) {
	report(Record{
		metrics:    g,
		value:      v,
		dimensions: dimensions,
	})
}
