// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"errors"
	"strconv"
)

// ErrInvalidID is returned by ParseID for anything other than a positive
// base-10 integer.
var ErrInvalidID = errors.New("invalid id")

// ParseID parses a path identifier strictly: digits only, no sign, no
// surrounding whitespace, greater than zero and within the uint32 range
// so it fits every supported database integer column.
//
// Example:
//
//	id, _ := utils.ParseID("42")  // 42
//	_, err := utils.ParseID("4x") // ErrInvalidID
func ParseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, ErrInvalidID
	}
	return uint(n), nil
}
