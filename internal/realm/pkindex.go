package realm

import (
	"github.com/google/btree"

	"github.com/roach88/emberdb/internal/value"
)

const pkDegree = 16

// pkEntry maps one primary key to the object holding it.
// Keys are value.Int or value.String; a single index never mixes them.
type pkEntry struct {
	key value.Value
	id  uint64
}

var _ btree.Item = pkEntry{}

// Less implements btree.Item.
func (e pkEntry) Less(than btree.Item) bool {
	c, ok := value.Compare(e.key, than.(pkEntry).key)
	return ok && c < 0
}

// pkIndex is the ordered primary-key index of one type.
type pkIndex struct {
	tree *btree.BTree
}

func newPKIndex(free *btree.FreeList) *pkIndex {
	return &pkIndex{tree: btree.NewWithFreeList(pkDegree, free)}
}

func (x *pkIndex) lookup(key value.Value) (uint64, bool) {
	item := x.tree.Get(pkEntry{key: key})
	if item == nil {
		return 0, false
	}
	return item.(pkEntry).id, true
}

func (x *pkIndex) put(key value.Value, id uint64) {
	x.tree.ReplaceOrInsert(pkEntry{key: key, id: id})
}

func (x *pkIndex) remove(key value.Value) {
	x.tree.Delete(pkEntry{key: key})
}

func (x *pkIndex) len() int {
	return x.tree.Len()
}
