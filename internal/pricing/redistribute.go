package pricing

import "sort"

type candidate struct {
	id    int64
	price int64
}

// redistribute funds amount by cutting DecreaseStep from each candidate in
// turn, most expensive first, wrapping around, while at least one full step
// remains. It returns the cut per id and the total cut, which is a multiple
// of DecreaseStep and falls short of amount by less than one step.
func redistribute(pool []candidate, amount int64) (map[int64]int64, int64) {
	if len(pool) == 0 || amount < DecreaseStep {
		return nil, 0
	}

	ordered := append([]candidate(nil), pool...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].price != ordered[j].price {
			return ordered[i].price > ordered[j].price
		}
		return ordered[i].id < ordered[j].id
	})

	cuts := make(map[int64]int64, len(ordered))
	remaining := amount
	for i := 0; remaining >= DecreaseStep; i = (i + 1) % len(ordered) {
		cuts[ordered[i].id] += DecreaseStep
		remaining -= DecreaseStep
	}
	return cuts, amount - remaining
}
