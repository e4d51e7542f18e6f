package listutil

import (
	"fmt"
	"iter"

	"bulksms/internal/domain/sms"
)

// Chunk partitions items into contiguous sub-slices of length size; the last may be shorter.
// The sequence is lazy and restartable: ranging over it twice yields the same partition.
// Chunks share items' backing array but are capacity-limited, so appending to one never overwrites the next.
// PRE: none
// POST: Returns ceil(len(items)/size) chunks; an ErrInvalidArgument-wrapped error if size <= 0
// INVARIANT: concatenating the chunks in order reproduces items
func Chunk[T any](items []T, size int) (iter.Seq[[]T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", sms.ErrInvalidArgument, size)
	}
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			if !yield(items[start:end:end]) {
				return
			}
		}
	}, nil
}

// Chunks collects Chunk into a slice.
// PRE: none
// POST: Returns an empty (nil) slice for empty items
func Chunks[T any](items []T, size int) ([][]T, error) {
	seq, err := Chunk(items, size)
	if err != nil {
		return nil, err
	}
	var out [][]T
	for c := range seq {
		out = append(out, c)
	}
	return out, nil
}

// ChunkCount returns how many chunks n items produce at the given size.
// PRE: size > 0
func ChunkCount(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
