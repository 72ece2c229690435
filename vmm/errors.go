package vmm

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/ptsim/pmm"
)

var (
	ErrInvalidProcess    = errors.New("invalid process id")
	ErrAddressOutOfRange = errors.New("virtual address out of range")
	ErrNoAddressSpace    = errors.New("process has no address space")
	ErrProcessExists     = errors.New("process already has an address space")
	ErrPageNotMapped     = errors.New("virtual page is not mapped")
)

const (
	PurposePageTable = "page table"
	PurposeDataPage  = "data page"
)

/*
AllocationError is returned when physical memory was exhausted while building
address space of a process. It unwraps to pmm.ErrOutOfPages.
*/
type AllocationError struct {
	Process int
	Purpose string // what the page was needed for, PurposePageTable or PurposeDataPage
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("OOM: proc %d %s", e.Process, e.Purpose)
}

func (e *AllocationError) Unwrap() error {
	return pmm.ErrOutOfPages
}
