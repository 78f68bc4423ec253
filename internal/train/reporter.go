package train

// Reporter receives progress from the training loop.
//
// Calls happen synchronously on the training goroutine, in step order.
type Reporter interface {
	// TrainLoss is called once per iteration with the last accumulation
	// step's loss.
	TrainLoss(step int, loss float64)

	// Validation is called after each validation pass.
	Validation(step int, loss float64)

	// Sample is called with the decoded prime and the decoded continuation.
	Sample(step int, prime, sample string)
}

// NopReporter discards all progress.
type NopReporter struct{}

// TrainLoss implements Reporter.
func (NopReporter) TrainLoss(int, float64) {}

// Validation implements Reporter.
func (NopReporter) Validation(int, float64) {}

// Sample implements Reporter.
func (NopReporter) Sample(int, string, string) {}
