package codegen

import "errors"

var (
	// ErrUnbound is returned when a tree refers to a variable that is not
	// bound on the current path.
	ErrUnbound = errors.New("unbound variable")

	// ErrMixedSwitch is returned for a literal switch with a constructor arm.
	ErrMixedSwitch = errors.New("switch mixes literal and constructor arms")

	// ErrLiteralSubject is returned when a literal switch tests a value that
	// is not an integer.
	ErrLiteralSubject = errors.New("literal switch on non-integer value")

	// ErrTagSubject is returned when a constructor switch tests a value that
	// is not a term pointer.
	ErrTagSubject = errors.New("constructor switch on non-pointer value")

	// ErrDuplicateCase is returned when two arms of one switch test the same
	// tag or literal.
	ErrDuplicateCase = errors.New("duplicate switch case")

	// ErrMultipleDefaults is returned for a switch with two default arms.
	ErrMultipleDefaults = errors.New("more than one default arm")

	// ErrArity is returned when an arm binds more fields than its
	// constructor has.
	ErrArity = errors.New("too many bindings for constructor")

	// ErrSignature is returned when a callee is already declared with a
	// different type.
	ErrSignature = errors.New("conflicting function signature")

	// ErrRedefined is returned when an eval function already has a body.
	ErrRedefined = errors.New("function already defined")

	// ErrUnterminated is returned when lowering leaves a block without a
	// terminator.
	ErrUnterminated = errors.New("block has no terminator")

	// ErrState is returned when entry builder steps run out of order.
	ErrState = errors.New("invalid builder state")
)
