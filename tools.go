//go:build tools

package bft

import (
	_ "github.com/golang/mock/mockgen"
)
