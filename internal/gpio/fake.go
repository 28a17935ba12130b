package gpio

// FakeOutput is a test double that records every level written to it.
type FakeOutput struct {
	// On is the current level.
	On bool

	// Transitions counts level changes (not redundant writes).
	Transitions int

	// History records every distinct level in order.
	History []bool

	// SetError, if set, will be returned by Set()
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeOutput creates a FakeOutput driven low.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the new level.
func (f *FakeOutput) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	if on != f.On {
		f.Transitions++
		f.History = append(f.History, on)
	}
	f.On = on
	return nil
}

// Close drives the line low and marks the output as closed.
func (f *FakeOutput) Close() error {
	f.Set(false)
	f.Closed = true
	return nil
}

// Reset clears recorded state.
func (f *FakeOutput) Reset() {
	f.On = false
	f.Transitions = 0
	f.History = nil
	f.SetError = nil
	f.Closed = false
}
