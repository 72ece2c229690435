/*
Package diag renders human readable dumps of the simulator state.
*/
package diag

import (
	"fmt"
	"io"

	"github.com/alphabill-org/ptsim/vmm"
)

const glyphsPerRow = 16

/*
FreeMap writes the allocation bitmap, one glyph per page: "#" for used and
"." for free page, 16 pages per row.
*/
func FreeMap(w io.Writer, bitmap []byte) error {
	buf := make([]byte, 0, len("--- PAGE FREE MAP ---\n")+len(bitmap)+len(bitmap)/glyphsPerRow+1)
	buf = append(buf, "--- PAGE FREE MAP ---\n"...)
	for i, used := range bitmap {
		if used == 0 {
			buf = append(buf, '.')
		} else {
			buf = append(buf, '#')
		}
		if (i+1)%glyphsPerRow == 0 {
			buf = append(buf, '\n')
		}
	}
	if len(bitmap)%glyphsPerRow != 0 {
		buf = append(buf, '\n')
	}
	_, err := w.Write(buf)
	return err
}

// PageTable writes the page table entries of the process.
func PageTable(w io.Writer, pid int, mappings []vmm.Mapping) error {
	if _, err := fmt.Fprintf(w, "--- PROCESS %d PAGE TABLE ---\n", pid); err != nil {
		return err
	}
	for _, m := range mappings {
		if _, err := fmt.Fprintln(w, m); err != nil {
			return err
		}
	}
	return nil
}
