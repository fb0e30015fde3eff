package scoring

// autojunkThreshold is the second-string length from which popular
// runes stop participating in matching.
const autojunkThreshold = 200

// Ratio computes the similarity of two strings as a value in [0,1]
// using the Ratcliff/Obershelp measure: twice the number of matched
// characters across recursively found longest common blocks, divided
// by the total length. Comparison is rune-based and case-sensitive;
// callers wanting case-insensitive scoring lower-case first.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	b2j := make(map[rune][]int, len(rb))
	for j, r := range rb {
		b2j[r] = append(b2j[r], j)
	}
	// For long references, runes covering more than 1% of b are too
	// common to anchor a match and are skipped, as SequenceMatcher's
	// autojunk does.
	if n := len(rb); n >= autojunkThreshold {
		ntest := n/100 + 1
		for r, idxs := range b2j {
			if len(idxs) > ntest {
				delete(b2j, r)
			}
		}
	}
	matches := matchTotal(ra, rb, b2j, 0, len(ra), 0, len(rb))
	return 2.0 * float64(matches) / float64(total)
}

// matchTotal sums the lengths of all matching blocks inside the given
// window, splitting recursively around the longest one.
func matchTotal(a, b []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) int {
	i, j, k := longestMatch(a, b2j, alo, ahi, blo, bhi)
	if k == 0 {
		return 0
	}
	return k +
		matchTotal(a, b, b2j, alo, i, blo, j) +
		matchTotal(a, b, b2j, i+k, ahi, j+k, bhi)
}

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] within the
// window, preferring the earliest position on ties.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		newj2len := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}
