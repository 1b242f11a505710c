// Package main provides solvisctl, the operator CLI for the rupture query
// service: ad hoc queries, catalogue imports and lookup table precompute.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
