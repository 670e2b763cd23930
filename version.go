/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datadirector

// Version is the release of the data director. Commit is set at link time:
//
//	go build -ldflags "-X github.com/storyofalicia/datadirector.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "0.1.0"
	Commit  = "unknown"
)
