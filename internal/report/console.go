package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/schollz/progressbar/v3"

	"github.com/born-ml/lmharness/internal/train"
)

// progressInterval throttles progress bar redraws.
const progressInterval = 10 * time.Second

// sampleRule separates the prime from the generated continuation.
var sampleRule = strings.Repeat("*", 100)

var (
	primeStyle  = lipgloss.NewStyle().Faint(true)
	sampleStyle = lipgloss.NewStyle().Bold(true)
	frameStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// Console reports training progress to a terminal.
//
// The per-iteration training loss is logged at info level and, with a
// progress bar, also shown in the bar description.
type Console struct {
	logger *log.Logger
	out    io.Writer
	bar    *progressbar.ProgressBar
}

var _ train.Reporter = (*Console)(nil)

// NewConsole creates a console reporter. Samples are written to out. total
// is the number of iterations; 0 disables the progress bar.
func NewConsole(logger *log.Logger, out io.Writer, total int) *Console {
	c := &Console{logger: logger, out: out}
	if total > 0 {
		c.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("training"),
			progressbar.OptionThrottle(progressInterval),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetPredictTime(true),
		)
	}
	return c
}

// TrainLoss implements train.Reporter.
func (c *Console) TrainLoss(step int, loss float64) {
	c.logger.Info("training", "step", step, "loss", loss)
	if c.bar == nil {
		return
	}
	c.bar.Describe(fmt.Sprintf("training loss %.4f", loss))
	if err := c.bar.Add(1); err != nil {
		c.logger.Debug("progress bar", "step", step, "err", err)
	}
}

// Validation implements train.Reporter.
func (c *Console) Validation(step int, loss float64) {
	c.logger.Info("validation", "step", step, "loss", loss)
}

// Sample implements train.Reporter.
func (c *Console) Sample(step int, prime, sample string) {
	c.logger.Info("sample", "step", step, "prime_bytes", len(prime), "sample_bytes", len(sample))
	fmt.Fprintln(c.out, RenderSample(prime, sample))
}

// Close finishes the progress bar.
func (c *Console) Close() error {
	if c.bar == nil {
		return nil
	}
	return c.bar.Finish()
}

// RenderSample frames a prime and its continuation for display.
func RenderSample(prime, sample string) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		primeStyle.Render(prime),
		"",
		sampleRule,
		"",
		sampleStyle.Render(sample),
	)
	return frameStyle.Render(body)
}
