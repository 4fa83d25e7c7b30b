package checkpointer

import (
	"fmt"
	"time"
)

// timeLayout formats checkpoint times so that filenames sort in the
// order in which they were created
const timeLayout = "20060102T150405.000000000"

// FileTimer returns a function which returns filenames suffixed with
// the UTC time of the call, for example agent-20211001T120000.000000000.
// The extension may be empty, for example when saving agents to
// directories.
func FileTimer(filename, extension string) func() string {
	return func() string {
		stamp := time.Now().UTC().Format(timeLayout)
		return fmt.Sprintf("%v-%v%v", filename, stamp, extension)
	}
}

// Naming is a scheme for naming checkpoint files
type Naming string

const (
	// Enumerate names checkpoints with a counter, see FilenameEnumerator
	Enumerate Naming = "enumerate"

	// Time names checkpoints with the time of saving, see FileTimer
	Time Naming = "time"
)

// Filenames returns the function which generates checkpoint filenames
// under the naming scheme
func (n Naming) Filenames(filename, extension string) (func() string,
	error) {
	switch n {
	case Enumerate:
		return FilenameEnumerator(0, filename, extension), nil
	case Time:
		return FileTimer(filename, extension), nil
	}
	return nil, fmt.Errorf("filenames: no such checkpoint naming %q", n)
}
