package analysis

import "github.com/rewired-gh/twodoracle/internal/models"

// NumberSet is a set of 2D numbers indexed by numeric value. Iteration is
// always in ascending order.
type NumberSet [100]bool

func index(n models.TwoD) int {
	return int(n[0]-'0')*10 + int(n[1]-'0')
}

func number(i int) models.TwoD {
	return models.FromDigits(byte('0'+i/10), byte('0'+i%10))
}

// Add inserts n. Invalid numbers are ignored.
func (s *NumberSet) Add(n models.TwoD) {
	if n.Valid() {
		s[index(n)] = true
	}
}

// Remove deletes n.
func (s *NumberSet) Remove(n models.TwoD) {
	if n.Valid() {
		s[index(n)] = false
	}
}

// Has reports whether n is in the set.
func (s *NumberSet) Has(n models.TwoD) bool {
	return n.Valid() && s[index(n)]
}

// Len returns the number of members.
func (s *NumberSet) Len() int {
	c := 0
	for _, ok := range s {
		if ok {
			c++
		}
	}
	return c
}

// Sorted returns the members in ascending order.
func (s *NumberSet) Sorted() []models.TwoD {
	out := make([]models.TwoD, 0, s.Len())
	for i, ok := range s {
		if ok {
			out = append(out, number(i))
		}
	}
	return out
}
