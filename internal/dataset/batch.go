package dataset

// Batch is a set of equally long windows stacked along a leading dimension.
//
// Window i supplies inputs Windows[i][:n-1] and next-byte targets
// Windows[i][1:], where n is the window length.
type Batch struct {
	Windows [][]byte
}

// Size returns the number of windows.
func (b Batch) Size() int {
	return len(b.Windows)
}

// SeqLen returns the number of predicted positions per window.
//
// Returns 0 for an empty batch.
func (b Batch) SeqLen() int {
	if len(b.Windows) == 0 {
		return 0
	}
	return len(b.Windows[0]) - 1
}

// Inputs returns the model inputs of window i.
func (b Batch) Inputs(i int) []byte {
	w := b.Windows[i]
	return w[:len(w)-1]
}

// Targets returns the next-byte targets of window i.
func (b Batch) Targets(i int) []byte {
	return b.Windows[i][1:]
}
