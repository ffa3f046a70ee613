package asm

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/rvsim/translate"
)

var f = translate.From

var (
	ErrEquateSyntax     = errors.New(f(".equ syntax"))
	ErrEquateDuplicate  = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate   = errors.New(f("label duplicated"))
	ErrLabelInvalid     = errors.New(f("label invalid"))
	ErrDataSyntax       = errors.New(f(".data syntax"))
	ErrDataAlignment    = errors.New(f("data not word aligned"))
	ErrTextOnly         = errors.New(f("instruction outside .text"))
	ErrOpcodeInvalid    = errors.New(f("opcode invalid"))
	ErrOperandCount     = errors.New(f("wrong number of operands"))
	ErrRegisterInvalid  = errors.New(f("register invalid"))
	ErrCSRInvalid       = errors.New(f("csr invalid"))
	ErrMemoryOperand    = errors.New(f("memory operand invalid"))
	ErrImmediateRange   = errors.New(f("immediate out of range"))
	ErrBranchAlignment  = errors.New(f("branch target not word aligned"))
	ErrExpression       = errors.New(f("expression invalid"))
	ErrForwardReference = errors.New(f("value must be known before use"))
)

// ErrLabelMissing reports a reference to a label that is never defined.
type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

// ErrSyntax attaches the source position to an assembly error.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}
