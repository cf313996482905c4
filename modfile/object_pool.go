package modfile

// Pattern data dominates the parser's allocations: 64 rows per pattern
// and one cell per channel per row. The pools below hand out slices
// carved from large backing arrays so a reused parser can decode many
// files without re-allocating every row.

type rowPool struct {
	data []Row
	used int
}

func initRowPool(p *rowPool, size int) {
	p.data = make([]Row, size)
}

func (p *rowPool) Reset() {
	p.used = 0
}

func (p *rowPool) MakeSlice(n int) []Row {
	if p.used+n > len(p.data) {
		return make([]Row, n)
	}
	s := p.data[p.used : p.used+n]
	p.used += n
	return s
}

type cellPool struct {
	data []Cell
	used int
}

func initCellPool(p *cellPool, size int) {
	p.data = make([]Cell, size)
}

func (p *cellPool) Reset() {
	p.used = 0
}

func (p *cellPool) MakeSlice(n int) []Cell {
	if p.used+n > len(p.data) {
		return make([]Cell, n)
	}
	s := p.data[p.used : p.used+n]
	p.used += n
	return s
}
