package train

// History is an append-only record of (step, loss) pairs.
type History struct {
	steps  []int
	values []float64
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Record appends a loss measured at step.
func (h *History) Record(step int, value float64) {
	h.steps = append(h.steps, step)
	h.values = append(h.values, value)
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	return len(h.values)
}

// Steps returns a copy of the recorded steps.
func (h *History) Steps() []int {
	return append([]int(nil), h.steps...)
}

// Values returns a copy of the recorded losses.
func (h *History) Values() []float64 {
	return append([]float64(nil), h.values...)
}

// Last returns the most recent entry. ok is false when the history is empty.
func (h *History) Last() (step int, value float64, ok bool) {
	if len(h.values) == 0 {
		return 0, 0, false
	}
	n := len(h.values) - 1
	return h.steps[n], h.values[n], true
}
