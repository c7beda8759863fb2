package optimizer

import "sort"

// Map translates offsets in the input code to offsets in the optimized code
type Map struct {
	identity bool
	olds     []int  // instruction starts in the input, ascending
	news     []int  // where each one starts now; removed ones map to the next survivor
	same     []bool // encoding untouched, so interior offsets carry over
	oldSize  int
	newSize  int
}

func identityMap(size int) *Map {
	return &Map{identity: true, oldSize: size, newSize: size}
}

// OldSize is the length of the input code
func (m *Map) OldSize() int { return m.oldSize }

// NewSize is the length of the optimized code
func (m *Map) NewSize() int { return m.newSize }

// Translate maps old to the new layout. Instruction starts and the end of
// the code always translate. An offset inside an instruction translates only
// when that instruction kept its encoding.
func (m *Map) Translate(old int) (int, bool) {
	if old < 0 || old > m.oldSize {
		return 0, false
	}
	if m.identity {
		return old, true
	}
	if old == m.oldSize {
		return m.newSize, true
	}
	i := sort.SearchInts(m.olds, old+1) - 1
	if i < 0 {
		return 0, false
	}
	if m.olds[i] == old {
		return m.news[i], true
	}
	if m.same[i] {
		return m.news[i] + old - m.olds[i], true
	}
	return 0, false
}
