package memory

import (
	"fmt"
	"slices"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

// ownerIndex — денормализованный список ключей по владельцу в порядке вставки.
type ownerIndex[K comparable] struct {
	byOwner map[domain.AccountRef][]K
}

func newOwnerIndex[K comparable]() *ownerIndex[K] {
	return &ownerIndex[K]{byOwner: make(map[domain.AccountRef][]K)}
}

func (i *ownerIndex[K]) add(owner domain.AccountRef, key K) {
	i.byOwner[owner] = append(i.byOwner[owner], key)
}

func (i *ownerIndex[K]) remove(owner domain.AccountRef, key K) {
	keys := i.byOwner[owner]
	idx := slices.Index(keys, key)
	if idx < 0 {
		return
	}
	keys = slices.Delete(keys, idx, idx+1)
	if len(keys) == 0 {
		delete(i.byOwner, owner)
		return
	}
	i.byOwner[owner] = keys
}

// move переносит ключ к новому владельцу, сохраняя его в конце списка получателя.
func (i *ownerIndex[K]) move(from, to domain.AccountRef, key K) {
	i.remove(from, key)
	i.add(to, key)
}

func (i *ownerIndex[K]) keys(owner domain.AccountRef) []K {
	return slices.Clone(i.byOwner[owner])
}

// sequenceIndex назначает плотные порядковые номера начиная с first.
// Освобождённые слоты не переиспользуются.
type sequenceIndex[K comparable] struct {
	first uint64
	next  uint64
	slots map[uint64]K
}

func newSequenceIndex[K comparable](first uint64) *sequenceIndex[K] {
	return &sequenceIndex[K]{first: first, next: first, slots: make(map[uint64]K)}
}

// peek возвращает номер, который получит следующая запись.
func (s *sequenceIndex[K]) peek() uint64 {
	return s.next
}

func (s *sequenceIndex[K]) assign(key K) uint64 {
	seq := s.next
	s.slots[seq] = key
	s.next++
	return seq
}

func (s *sequenceIndex[K]) release(seq uint64) {
	delete(s.slots, seq)
}

// walk обходит слоты от first до текущего счётчика, пропуская пустые.
func (s *sequenceIndex[K]) walk(fn func(seq uint64, key K)) {
	for seq := s.first; seq < s.next; seq++ {
		key, ok := s.slots[seq]
		if !ok {
			continue
		}
		fn(seq, key)
	}
}

func (s *sequenceIndex[K]) len() int {
	return len(s.slots)
}

// checkOwnerIndex сверяет индекс владельцев с каноническими записями.
func checkOwnerIndex[K comparable, V any](idx *ownerIndex[K], records map[K]V, ownerOf func(V) domain.AccountRef) error {
	seen := make(map[K]struct{}, len(records))
	for owner, keys := range idx.byOwner {
		for _, key := range keys {
			record, ok := records[key]
			if !ok {
				return fmt.Errorf("owner index %s references missing key %v", owner, key)
			}
			if got := ownerOf(record); got != owner {
				return fmt.Errorf("owner index %s holds key %v owned by %s", owner, key, got)
			}
			if _, dup := seen[key]; dup {
				return fmt.Errorf("key %v indexed more than once", key)
			}
			seen[key] = struct{}{}
		}
	}
	if len(seen) != len(records) {
		return fmt.Errorf("owner index covers %d of %d records", len(seen), len(records))
	}
	return nil
}
