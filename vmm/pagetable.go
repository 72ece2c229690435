package vmm

import (
	"fmt"

	"github.com/alphabill-org/ptsim/memory"
)

// Mapping is a single page table entry: virtual page -> physical page.
type Mapping struct {
	Virtual  memory.Page
	Physical memory.Page
}

func (m Mapping) String() string {
	return fmt.Sprintf("%02x -> %02x", m.Virtual, m.Physical)
}

func (m *Machine) checkProcess(pid int) error {
	if pid < 0 || pid >= m.mem.Layout().PageCount {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidProcess, pid, m.mem.Layout().PageCount)
	}
	return nil
}

/*
PageTablePage returns the physical page holding the page table of the process,
zero means the process has no address space.
*/
func (m *Machine) PageTablePage(pid int) (memory.Page, error) {
	if err := m.checkProcess(pid); err != nil {
		return 0, err
	}
	return memory.Page(m.mem.Directory()[pid]), nil
}

func (m *Machine) setPageTablePage(pid int, p memory.Page) {
	m.mem.Directory()[pid] = byte(p)
}

/*
Mappings returns all the non-zero entries of the page table of the process
in ascending virtual page order.
*/
func (m *Machine) Mappings(pid int) ([]Mapping, error) {
	ptp, err := m.PageTablePage(pid)
	if err != nil {
		return nil, err
	}
	if ptp == 0 && m.conf.checkMappings {
		return nil, fmt.Errorf("%w: proc %d", ErrNoAddressSpace, pid)
	}

	var res []Mapping
	for v, p := range m.pageTable(ptp) {
		if p != 0 {
			res = append(res, Mapping{Virtual: memory.Page(v), Physical: memory.Page(p)})
		}
	}
	return res, nil
}

/*
pageTable returns the entries of the page table stored in page "ptp".
Only the first PageCount bytes of the page are used as entries. Returns nil
when the directory points outside of physical memory (possible only when
page 0 has been overwritten by a store).
*/
func (m *Machine) pageTable(ptp memory.Page) []byte {
	page := m.mem.Page(ptp)
	if page == nil {
		return nil
	}
	n := m.mem.Layout().PageCount
	return page[:n:n]
}
