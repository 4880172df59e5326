// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

// Package pfdferrors defines the error taxonomy shared by the raster,
// d8, segments, basins, stats, and export packages. Every exported
// constructor names the offending parameter and reports the observed
// value against what was expected; the engine never substitutes a
// default for invalid input.
package pfdferrors

import "fmt"

// Kind classifies an error without requiring callers to match on a
// concrete type. Use errors.As to recover the *Error and its Kind.
type Kind int

const (
	// KindArray covers invalid array shape, dtype, or emptiness.
	KindArray Kind = iota
	// KindMissingMetadata covers a CRS, transform, or NoData value
	// that is required but absent.
	KindMissingMetadata
	// KindRasterMismatch covers two rasters whose CRS, transform, or
	// shape are required to agree and do not.
	KindRasterMismatch
	// KindGeometry covers an invalid polygon or point coordinate set.
	KindGeometry
	// KindOverlap covers features or rasters required to overlap a
	// bounding box that do not.
	KindOverlap
	// KindRange covers a numeric argument outside its permitted
	// interval, or a categorical value outside its enumerated set.
	KindRange
	// KindCasting covers a value that cannot be cast to a target
	// dtype under the requested casting policy.
	KindCasting
	// KindTooLarge covers an operation that would allocate more
	// memory than the process can accommodate.
	KindTooLarge
	// KindInternalInvariant covers a graph traversal that exceeded
	// its iteration bound, or parent/child tables that disagree.
	// Surfacing this kind indicates a bug in the engine, not bad
	// caller input.
	KindInternalInvariant
)

func (k Kind) String() string {
	switch k {
	case KindArray:
		return "ArrayError"
	case KindMissingMetadata:
		return "MissingMetadataError"
	case KindRasterMismatch:
		return "RasterMismatchError"
	case KindGeometry:
		return "GeometryError"
	case KindOverlap:
		return "OverlapError"
	case KindRange:
		return "RangeError"
	case KindCasting:
		return "CastingError"
	case KindTooLarge:
		return "TooLargeError"
	case KindInternalInvariant:
		return "InternalInvariantError"
	default:
		return "Error"
	}
}

// Error is the concrete error type returned throughout the engine. It
// names the offending parameter and carries the observed and expected
// values so that the message is actionable without a debugger.
type Error struct {
	Kind     Kind
	Param    string
	Message  string
	Observed any
	Expected any
}

func (e *Error) Error() string {
	switch {
	case e.Observed != nil && e.Expected != nil:
		return fmt.Sprintf("%s: %s (observed %v, expected %v)", e.Kind, e.Message, e.Observed, e.Expected)
	case e.Observed != nil:
		return fmt.Sprintf("%s: %s (observed %v)", e.Kind, e.Message, e.Observed)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func newErr(kind Kind, param, message string, observed, expected any) *Error {
	return &Error{Kind: kind, Param: param, Message: message, Observed: observed, Expected: expected}
}

// Array reports an invalid array (shape, dtype, or emptiness).
func Array(param, message string, observed any) *Error {
	return newErr(KindArray, param, message, observed, nil)
}

// MissingMetadata reports an absent CRS, transform, or NoData value.
func MissingMetadata(param, message string) *Error {
	return newErr(KindMissingMetadata, param, message, nil, nil)
}

// RasterMismatch reports two rasters whose CRS, transform, or shape
// disagree where they are required to match.
func RasterMismatch(param, message string, observed, expected any) *Error {
	return newErr(KindRasterMismatch, param, message, observed, expected)
}

// Geometry reports an invalid polygon or point coordinate set.
func Geometry(param, message string) *Error {
	return newErr(KindGeometry, param, message, nil, nil)
}

// Overlap reports features or rasters that do not overlap a required
// bounding box.
func Overlap(param, message string) *Error {
	return newErr(KindOverlap, param, message, nil, nil)
}

// Range reports a numeric argument outside its permitted interval, or
// a categorical value outside its enumerated set.
func Range(param, message string, observed, expected any) *Error {
	return newErr(KindRange, param, message, observed, expected)
}

// Casting reports a value that cannot be cast to a target dtype under
// the requested casting policy.
func Casting(param, message string, observed, expected any) *Error {
	return newErr(KindCasting, param, message, observed, expected)
}

// TooLarge reports an operation that would allocate more memory than
// the process can accommodate.
func TooLarge(param, message string) *Error {
	return newErr(KindTooLarge, param, message, nil, nil)
}

// InternalInvariant reports a graph traversal that exceeded its
// iteration bound, or parent/child tables that disagree. Callers
// should treat this as a bug report, not a validation failure.
func InternalInvariant(message string) *Error {
	return newErr(KindInternalInvariant, "", message, nil, nil)
}

// Is supports errors.Is comparisons against a Kind-only sentinel
// produced by Sentinel, so callers can test "is this a TooLarge
// error" without type-asserting *Error directly.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Param == "" && t.Message == "" && t.Observed == nil && t.Expected == nil {
		return e.Kind == t.Kind
	}
	return e == t
}

// Sentinel returns a bare *Error carrying only a Kind, suitable for
// errors.Is(err, pfdferrors.Sentinel(pfdferrors.KindTooLarge)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
