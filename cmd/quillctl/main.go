// Command quillctl manages accounts and posts of a Quill site directly
// against its configured backends.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
