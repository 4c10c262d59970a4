// Package buildinfo reports version data set at link time, e.g.
//
//	go build -ldflags "-X github.com/dmitrijs2005/keevault/internal/buildinfo.Version=v1.2.0"
package buildinfo

import (
	"fmt"
	"io"
	"runtime/debug"
)

var (
	Version = ""
	Date    = ""
	Commit  = ""
)

// readBuildInfo is a seam for tests.
var readBuildInfo = debug.ReadBuildInfo

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// version falls back to the module version recorded by the go tool.
func version() string {
	if Version != "" {
		return Version
	}
	if bi, ok := readBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return ""
}

func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", orNA(version()))
	fmt.Fprintf(w, "Build date: %s\n", orNA(Date))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(Commit))
}
