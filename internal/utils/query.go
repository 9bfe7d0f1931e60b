// Package utils holds tiny helpers shared across layers. Nothing in
// here knows about HTTP, GORM, or the click domain.
package utils

import "strconv"

// ParseLimit interprets a limit query parameter. Absent or malformed
// values come back as -1, which the service layer reads as "use the
// default page size"; an explicit 0 stays 0 and returns an empty list.
//
// Example:
//
//	utils.ParseLimit("25") // 25
//	utils.ParseLimit("")   // -1
//	utils.ParseLimit("x")  // -1
func ParseLimit(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
