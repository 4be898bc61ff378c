package guid

import (
	"crypto/rand"
	"fmt"
)

// New returns a random identifier in the familiar 8-4-4-4-12 layout.
func New() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
