package logging

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes logrus output by level: error-and-above to stderr,
// everything else to stdout.
type OutputSplitter struct{}

func (s *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte("level=fatal")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Default is the package-wide logger used when no other instance is passed in.
var Default = New(DefaultConfig())
