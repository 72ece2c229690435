/*
Package snapshot persists the image of the physical memory into key-value
database so that address spaces survive between the runs of the simulator.
*/
package snapshot

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/ptsim/keyvaluedb"
	"github.com/alphabill-org/ptsim/memory"
)

var ErrLayoutMismatch = errors.New("memory layout of the image doesn't match")

var imageKey = []byte("memory")

// Image is the persisted form of the physical memory.
type Image struct {
	_         struct{} `cbor:",toarray"`
	PageSize  int      `json:"pageSize"`
	PageCount int      `json:"pageCount"`
	Data      []byte   `json:"data"`
}

// Save writes the image of "mem" into the db, replacing the previous image.
func Save(db keyvaluedb.Writer, mem *memory.Memory) error {
	if mem == nil {
		return errors.New("memory is nil")
	}
	l := mem.Layout()
	img := &Image{PageSize: l.PageSize, PageCount: l.PageCount, Data: mem.Image()}
	if err := db.Write(imageKey, img); err != nil {
		return fmt.Errorf("writing memory image: %w", err)
	}
	return nil
}

/*
Load restores memory from the image stored in the db. When the db doesn't
contain image (false, nil) is returned. Image saved with different layout
causes ErrLayoutMismatch.
*/
func Load(db keyvaluedb.Reader, layout memory.Layout) (*memory.Memory, bool, error) {
	var img Image
	found, err := db.Read(imageKey, &img)
	if err != nil {
		return nil, found, fmt.Errorf("reading memory image: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	if img.PageSize != layout.PageSize || img.PageCount != layout.PageCount {
		return nil, true, fmt.Errorf("%w: image has %d pages x %d bytes, expected %s", ErrLayoutMismatch, img.PageCount, img.PageSize, layout)
	}
	mem, err := memory.FromImage(layout, img.Data)
	if err != nil {
		return nil, true, fmt.Errorf("restoring memory: %w", err)
	}
	return mem, true, nil
}
