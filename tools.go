//go:build tools

// Package tools keeps generator dependencies such as mockgen tracked in go.mod.
package meet

import (
	_ "go.uber.org/mock/mockgen"
)
