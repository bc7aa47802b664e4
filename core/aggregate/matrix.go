package aggregate

import (
	"encoding/json"
	"fmt"

	"github.com/FocuswithJustin/xrefgraph/core/canon"
)

// BookMatrix holds directed book-to-book weights indexed by canon ordinal.
// matrix[i][j] is the total weight from book i to book j; the diagonal is zero.
type BookMatrix [canon.BookCount][canon.BookCount]int

// At returns the weight from book i to book j, or 0 when out of range.
func (m *BookMatrix) At(i, j int) int {
	if !inRange(i) || !inRange(j) {
		return 0
	}
	return m[i][j]
}

// Total returns the sum of every cell.
func (m *BookMatrix) Total() int {
	total := 0
	for i := range m {
		for j := range m[i] {
			total += m[i][j]
		}
	}
	return total
}

// NonZero returns the number of cells with a positive weight.
func (m *BookMatrix) NonZero() int {
	n := 0
	for i := range m {
		for j := range m[i] {
			if m[i][j] != 0 {
				n++
			}
		}
	}
	return n
}

// Cell is one non-zero entry of a BookMatrix.
type Cell struct {
	From   int
	To     int
	Weight int
}

// Cells returns the non-zero cells in row-major order.
func (m *BookMatrix) Cells() []Cell {
	var cells []Cell
	for i := range m {
		for j := range m[i] {
			if m[i][j] != 0 {
				cells = append(cells, Cell{From: i, To: j, Weight: m[i][j]})
			}
		}
	}
	return cells
}

// MarshalJSON encodes the matrix as a 66x66 array of arrays.
func (m *BookMatrix) MarshalJSON() ([]byte, error) {
	rows := make([][]int, canon.BookCount)
	for i := range m {
		rows[i] = m[i][:]
	}
	return json.Marshal(rows)
}

// UnmarshalJSON decodes a 66x66 array of arrays. Any other shape is an error.
func (m *BookMatrix) UnmarshalJSON(data []byte) error {
	var rows [][]int
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if len(rows) != canon.BookCount {
		return fmt.Errorf("book matrix has %d rows, want %d", len(rows), canon.BookCount)
	}
	for i, row := range rows {
		if len(row) != canon.BookCount {
			return fmt.Errorf("book matrix row %d has %d columns, want %d", i, len(row), canon.BookCount)
		}
		copy(m[i][:], row)
	}
	return nil
}
