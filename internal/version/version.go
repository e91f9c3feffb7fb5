// ABOUTME: Version and product identification
// ABOUTME: Shown in the TUI header and the -version flag
package version

import "fmt"

const (
	Version      = "0.3.0"
	Product      = "Resonate Deck"
	Manufacturer = "Resonate"
)

// String returns the product name with its version
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
