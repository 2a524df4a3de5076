// Package fbterm models the text framebuffer region of spec.md §6.3
// (0xB8000, an 80x25 grid of u16 VGA text cells: low byte glyph, high byte
// attribute) and renders it to an ANSI terminal. Real framebuffer MMIO is
// out of scope (spec.md §1): nothing here pokes a physical address. What
// is in scope is the data structure spec.md calls out as "shared
// free-for-all" (§5) — any task can write any cell without
// synchronization — and the CLI's ability to look at it.
package fbterm

import (
	"fmt"
	"io"

	"github.com/charmbracelet/x/ansi"

	"github.com/nullforge/corekernel/internal/kconfig"
)

// vgaColor is one of the 16 standard VGA text-mode colors, index matching
// the low (foreground) or high (background) nibble of a cell's attribute
// byte.
type vgaColor uint8

// ansiSGR is the base SGR parameter for this color as a foreground (add 10
// for background), per the standard ANSI 16-color mapping.
func (c vgaColor) ansiSGR() int {
	base := [...]int{30, 34, 32, 36, 31, 35, 33, 37, 90, 94, 92, 96, 91, 95, 93, 97}
	return base[c&0xF]
}

// Cell is one framebuffer entry: a glyph byte and a VGA attribute byte
// (low nibble foreground, high nibble background), matching the packed
// u16 layout spec.md §6.3 describes (glyph | attr<<8).
type Cell struct {
	Glyph byte
	Attr  byte
}

func (c Cell) fg() vgaColor { return vgaColor(c.Attr & 0x0F) }
func (c Cell) bg() vgaColor { return vgaColor((c.Attr >> 4) & 0x0F) }

// Buffer is the in-memory model of the 0xB8000 region: cfg.FramebufferRows
// rows of cfg.FramebufferCols cells. Writes are plain slice stores with no
// locking, matching spec.md §5's "races are tolerated as a debugging
// compromise" for this one resource.
type Buffer struct {
	cols, rows int
	cells      []Cell
	cursorRow  int
	cursorCol  int
}

// New builds a blank buffer (space glyph, light-gray on black, the BIOS
// text-mode default) sized per cfg.
func New(cfg kconfig.Config) *Buffer {
	b := &Buffer{cols: cfg.FramebufferCols, rows: cfg.FramebufferRows}
	b.cells = make([]Cell, b.cols*b.rows)
	for i := range b.cells {
		b.cells[i] = Cell{Glyph: ' ', Attr: 0x07}
	}
	return b
}

func (b *Buffer) Size() (cols, rows int) { return b.cols, b.rows }

// WriteCell stores glyph/attr at (row, col). Out-of-range coordinates are
// silently ignored, the same "don't crash the kernel over a framebuffer
// write" posture the teacher's text-mode helpers take.
func (b *Buffer) WriteCell(row, col int, glyph, attr byte) {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols {
		return
	}
	b.cells[row*b.cols+col] = Cell{Glyph: glyph, Attr: attr}
}

// Cell returns the cell at (row, col), or the zero Cell if out of range.
func (b *Buffer) Cell(row, col int) Cell {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols {
		return Cell{}
	}
	return b.cells[row*b.cols+col]
}

// WriteString writes s starting at (row, col) using attr, left to right,
// without wrapping past the row — a thin convenience over WriteCell for
// scenario reporting and tests, mirroring the teacher's putString helpers.
func (b *Buffer) WriteString(row, col int, s string, attr byte) {
	for i := 0; i < len(s) && col+i < b.cols; i++ {
		b.WriteCell(row, col+i, s[i], attr)
	}
}

// SetCursor records the cursor cell, matching the teacher's
// cursor-position bookkeeping in its framebuffer info struct. Render does
// not read it: no cell is highlighted.
func (b *Buffer) SetCursor(row, col int) {
	b.cursorRow, b.cursorCol = row, col
}

// Render draws the buffer to w as a sequence of ANSI cursor-addressed,
// color-set writes: one escape-prefixed line per row, each run of
// same-attribute cells coalesced into a single SGR sequence. This is the
// CLI's `scenario run --render` mode; it never touches real hardware.
func (b *Buffer) Render(w io.Writer) error {
	for row := 0; row < b.rows; row++ {
		if _, err := io.WriteString(w, ansi.CursorPosition(row+1, 1)); err != nil {
			return err
		}
		var run []byte
		var runAttr byte
		flush := func() error {
			if len(run) == 0 {
				return nil
			}
			fg := Cell{Attr: runAttr}.fg().ansiSGR()
			bg := Cell{Attr: runAttr}.bg().ansiSGR() + 10
			if _, err := fmt.Fprintf(w, "\x1b[%d;%dm%s\x1b[0m", fg, bg, run); err != nil {
				return err
			}
			run = nil
			return nil
		}
		for col := 0; col < b.cols; col++ {
			cell := b.Cell(row, col)
			if len(run) > 0 && cell.Attr != runAttr {
				if err := flush(); err != nil {
					return err
				}
			}
			runAttr = cell.Attr
			g := cell.Glyph
			if g == 0 {
				g = ' '
			}
			run = append(run, g)
		}
		if err := flush(); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return err
		}
	}
	return nil
}
