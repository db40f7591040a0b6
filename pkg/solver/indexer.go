package solver

import (
	"sort"

	"github.com/limaJavier/shiftsync/pkg/compiler"
)

// indexer gives a unique, 1-based SAT variable to every (block, placement, room) choice and to
// every (block, placement) pair, and vice versa. Domains differ from block to block, so each
// block owns a contiguous range of variables starting at its offset.
type indexer struct {
	offsets    []uint64 // offsets[i] is the number of variables used by blocks before i
	placements []uint64
	rooms      []uint64
	variables  uint64
}

func newIndexer(blocks []compiler.Block) *indexer {
	indexer := &indexer{
		offsets:    make([]uint64, len(blocks)),
		placements: make([]uint64, len(blocks)),
		rooms:      make([]uint64, len(blocks)),
	}
	for i, block := range blocks {
		indexer.offsets[i] = indexer.variables
		indexer.placements[i] = uint64(len(block.Placements))
		indexer.rooms[i] = uint64(len(block.Rooms))
		// One assignment variable per (placement, room) plus one placement variable per placement
		indexer.variables += indexer.placements[i]*indexer.rooms[i] + indexer.placements[i]
	}
	return indexer
}

// Variables returns the total number of variables
func (indexer *indexer) Variables() uint64 {
	return indexer.variables
}

// Index returns the assignment variable of the block at placement and room
func (indexer *indexer) Index(block, placement, room int) int64 {
	return int64(indexer.offsets[block] + uint64(placement)*indexer.rooms[block] + uint64(room) + 1)
}

// PlacementIndex returns the variable stating that the block starts at placement, whatever the room
func (indexer *indexer) PlacementIndex(block, placement int) int64 {
	return int64(indexer.offsets[block] + indexer.placements[block]*indexer.rooms[block] + uint64(placement) + 1)
}

// Attributes decodes an assignment variable. The last value is false for placement variables.
func (indexer *indexer) Attributes(index int64) (block, placement, room int, assignment bool) {
	value := uint64(index) - 1
	block = sort.Search(len(indexer.offsets), func(i int) bool { return indexer.offsets[i] > value }) - 1

	value -= indexer.offsets[block]
	if assignments := indexer.placements[block] * indexer.rooms[block]; value >= assignments {
		return block, int(value - assignments), 0, false
	}
	return block, int(value / indexer.rooms[block]), int(value % indexer.rooms[block]), true
}
