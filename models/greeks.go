package models

// Greeks bundles the five first-order price sensitivities plus the
// always-zero Lambda field the source snapshot carries for symmetry with
// downstream schemas that report leveraged Greeks.
type Greeks struct {
	Delta  float64
	Gamma  float64
	Vega   float64
	Theta  float64
	Rho    float64
	Lambda float64
}

// IsZero reports whether every field is at its zero value, the shape a
// freshly constructed or never-updated Greeks bundle has.
func (g Greeks) IsZero() bool {
	return g == Greeks{}
}
