// pkg/pw_err/resource.go

package pw_err

import "fmt"

// PackageNotFoundError is returned when a package has no candidate version
// in any configured feed.
type PackageNotFoundError struct {
	Package string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package %q not found in any configured feed", e.Package)
}

// Hint suggests the usual fix for a missing package.
func (e *PackageNotFoundError) Hint() string {
	return "check the feed configuration and run 'opkg update'"
}

// InsufficientSpaceError is returned by the space budget check.
type InsufficientSpaceError struct {
	Required  int64
	Available int64
}

// Shortfall is the number of bytes that must be freed.
func (e *InsufficientSpaceError) Shortfall() int64 {
	return e.Required - e.Available
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient storage: need %d bytes, %d bytes available (%d bytes short)",
		e.Required, e.Available, e.Shortfall())
}

// Hint tells the user how much to free.
func (e *InsufficientSpaceError) Hint() string {
	return fmt.Sprintf("free at least %d bytes on the overlay filesystem and retry", e.Shortfall())
}
