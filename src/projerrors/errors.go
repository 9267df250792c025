// Package projerrors declares the error kinds shared by the assembler, the
// disassembler, the cleaner and the validator.
package projerrors

import (
	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrNotFound is returned when a manifest, project or input file is missing.
	ErrNotFound = errors.NewKind("%s does not exist")

	// ErrInvalidArgument is returned for absent or empty required arguments and
	// unrecognized edition strings.
	ErrInvalidArgument = errors.NewKind("invalid argument: %s")

	// ErrLookup is returned when a measure group ID referenced by a partitions
	// file has no match in the base cube.
	ErrLookup = errors.NewKind("measure group %q not found in cube %q")

	// ErrIO wraps file system failures.
	ErrIO = errors.NewKind("i/o failure on %s")

	// ErrMalformed is returned when a document cannot be read as the expected object.
	ErrMalformed = errors.NewKind("malformed document %s: %s")

	// ErrAssembly identifies the file that made an assembly run fail.
	ErrAssembly = errors.NewKind("assembly failed at %s")

	// ErrDuplicateName is returned by disassembly when two objects of one category
	// share a name and overwriting is not allowed.
	ErrDuplicateName = errors.NewKind("duplicate %s name %q")
)

