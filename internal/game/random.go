package game

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// Source draws secrets. Between returns a uniformly distributed integer in
// [lo, hi].
type Source interface {
	Between(lo, hi int) int
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(lo, hi int) int

// Between calls f.
func (f SourceFunc) Between(lo, hi int) int { return f(lo, hi) }

// CryptoSource returns a Source backed by crypto/rand.
func CryptoSource() Source { return SourceFunc(cryptoBetween) }

// cryptoBetween falls back to lo if the system entropy source fails.
func cryptoBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(hi-lo+1)))
	if err != nil {
		return lo
	}
	return lo + int(n.Int64())
}

// Fixed returns a Source that always yields n.
func Fixed(n int) Source {
	return SourceFunc(func(int, int) int { return n })
}

// Sequence returns a Source that yields ns in order and then repeats the
// last value. It is safe for concurrent use.
func Sequence(ns ...int) Source {
	var (
		mu sync.Mutex
		i  int
	)
	return SourceFunc(func(lo, _ int) int {
		if len(ns) == 0 {
			return lo
		}
		mu.Lock()
		defer mu.Unlock()
		n := ns[i]
		if i < len(ns)-1 {
			i++
		}
		return n
	})
}
