package util

import (
	"flag"
	"fmt"
	"os"

	"github.com/cyberbrief/cyberbrief/pkg/version"
)

var (
	versionFlagS *bool
	versionFlagL *bool
)

func init() {
	versionFlagS = flag.Bool("v", false, "Print version information")
	versionFlagL = flag.Bool("version", false, "Print version information")
}

func ParseFlags() {
	flag.Parse()

	switch {
	case *versionFlagS || *versionFlagL:
		fmt.Println(version.Info())
		os.Exit(0)
	}
}
