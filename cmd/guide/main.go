// Command guide walks through the configuration examples in configs/. It
// loads the given configuration and logs every level from a handful of
// targets, so the effect of levels, additivity and appenders is visible.
//
//	guide configs/subtree_levels.yaml
//	guide --watch configs/rolling_file.yaml
//	guide validate configs/*.yaml
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
