// Command pyext configures, builds and installs Python native extension
// modules described by an extension.hcl manifest.
package main

import (
	"shanhu.io/misc/subcmd"
)

func cmd() *subcmd.List {
	c := subcmd.New()
	c.Add("configure", "resolves sources and dependencies", cmdConfigure)
	c.Add("build", "builds the extension modules", cmdBuild)
	c.Add("install", "builds and installs the extension modules", cmdInstall)
	c.Add("clean", "removes build artifacts", cmdClean)
	c.Add("version", "prints or writes the release version", cmdVersion)
	return c
}

func main() { cmd().Main() }
