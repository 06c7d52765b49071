package cli

import (
	"fmt"
	"runtime"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(*Globals) error {
	fmt.Printf("enderbridge %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
	return nil
}
