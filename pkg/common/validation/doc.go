// Package validation provides common validation utilities for configuration
// parameters across the settle library.
//
// Wrapper constructors, the YAML policy loader and the scheduler all report
// rejected values through these helpers so error messages stay consistent.
package validation
