package vmm

import (
	"fmt"

	"github.com/alphabill-org/ptsim/memory"
)

/*
Translate returns the physical address backing the virtual address "vaddr"
of the process "pid".

The virtual page number is looked up in the page table of the process found
via the process directory. Just like the hardware it models the translation
doesn't validate the entries: for an unmapped page (entry 0) or a process
without page table (directory slot 0) the result is composed from whatever
bytes page 0 holds at that position. Use WithMappingChecks to turn these
cases into ErrPageNotMapped and ErrNoAddressSpace errors.

Process id and virtual page number must be inside [0, PageCount) as the
lookup would otherwise read outside of the page table.
*/
func (m *Machine) Translate(pid, vaddr int) (int, error) {
	ptp, err := m.PageTablePage(pid)
	if err != nil {
		return 0, err
	}
	layout := m.mem.Layout()
	vpage, offset := layout.SplitAddress(vaddr)
	if vaddr < 0 || vpage >= layout.PageCount {
		return 0, fmt.Errorf("%w: %d, virtual page must be in [0, %d)", ErrAddressOutOfRange, vaddr, layout.PageCount)
	}
	if ptp == 0 && m.conf.checkMappings {
		return 0, fmt.Errorf("%w: proc %d", ErrNoAddressSpace, pid)
	}

	table := m.pageTable(ptp)
	if table == nil {
		return 0, fmt.Errorf("%w: page table of proc %d is in page %d", memory.ErrAddressOutOfRange, pid, ptp)
	}
	phys := table[vpage]
	if phys == 0 && m.conf.checkMappings {
		return 0, fmt.Errorf("%w: proc %d virtual page %d", ErrPageNotMapped, pid, vpage)
	}
	return layout.Address(int(phys), offset), nil
}
