// Package incremental implements the Incremental Update Manager (C8):
// on re-ingest, diff old chunk hashes against freshly chunked new
// content and decide whether to reprocess the whole document or patch
// only the changed chunks (§4.8).
package incremental

import (
	"github.com/pmezard/go-difflib/difflib"
)

// editBlock is one run from the hash-level diff: old ordinals
// [OldStart,OldEnd) no longer hold at their old position, new ordinals
// [NewStart,NewEnd) carry their content at the new position. Equal
// blocks are kept (not dropped) because a preceding insert/delete can
// still shift an equal block's ordinals, and a shifted ordinal changes
// the block's chunk_ids even though its text doesn't change.
type editBlock struct {
	Equal            bool
	OldStart, OldEnd int
	NewStart, NewEnd int
}

// Shifted reports whether this block's new ordinals differ from its
// old ordinals, i.e. whether doc_id+ordinal-derived chunk_ids for this
// block changed even though (for an equal block) the text didn't.
func (b editBlock) Shifted() bool {
	return b.OldStart != b.NewStart
}

// diffHashes runs a longest-common-subsequence diff over old and new
// ordered chunk hash lists, per §4.8. go-difflib's SequenceMatcher
// implements Ratcliff-Obershelp matching over opaque string slices,
// exactly the "diff by LCS on hashes" operation this step names. All
// blocks are returned, including equal ones, so a caller can detect
// ordinal shifts that a length-changing edit pushes through an
// otherwise-unchanged tail; only non-equal blocks count toward
// changedChunks (delta_ratio measures content change, not shifting).
func diffHashes(old, newHashes []string) (blocks []editBlock, changedChunks int) {
	sm := difflib.NewMatcher(old, newHashes)
	for _, op := range sm.GetOpCodes() {
		b := editBlock{Equal: op.Tag == 'e', OldStart: op.I1, OldEnd: op.I2, NewStart: op.J1, NewEnd: op.J2}
		blocks = append(blocks, b)
		if !b.Equal {
			changedChunks += max(op.I2-op.I1, op.J2-op.J1)
		}
	}
	return blocks, changedChunks
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
