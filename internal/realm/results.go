package realm

import (
	"iter"
	"slices"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/query"
	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

// Results is a collection of objects of one type.
//
// Results from Objects, Filtered and Sorted are live: every read reflects
// the current state of the realm, including uncommitted changes of the
// active write. Snapshot returns a frozen copy.
type Results struct {
	realm *Realm
	os    *schema.ObjectSchema
	pred  *query.Predicate

	sortBy     *schema.Property
	descending bool

	// frozen is set for snapshots.
	frozen []uint64

	cacheGen uint64
	cache    []uint64
	cached   bool
}

// Type returns the object type name.
func (res *Results) Type() string {
	return res.os.Name
}

// Predicate returns the source of the filter, empty when unfiltered.
func (res *Results) Predicate() string {
	return res.pred.String()
}

// IsLive reports whether the collection tracks the realm.
func (res *Results) IsLive() bool {
	return res.frozen == nil
}

func (res *Results) ids() []uint64 {
	if res.frozen != nil {
		return res.frozen
	}
	c := res.realm.core
	if res.realm.closed {
		return nil
	}
	if res.cached && res.cacheGen == c.gen {
		return res.cache
	}

	t := c.tables[res.os.Name]
	var ids []uint64
	for _, rw := range t.rows {
		if res.pred.Match(rw) {
			ids = append(ids, rw.id)
		}
	}
	if res.sortBy != nil {
		i := res.sortBy.Index
		slices.SortStableFunc(ids, func(a, b uint64) int {
			ra, _ := t.get(a)
			rb, _ := t.get(b)
			n := compareForSort(ra.values[i], rb.values[i])
			if res.descending {
				return -n
			}
			return n
		})
	}
	res.cache, res.cacheGen, res.cached = ids, c.gen, true
	return ids
}

// compareForSort orders nulls first, then by value.
func compareForSort(a, b value.Value) int {
	an, bn := value.IsNull(a), value.IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	if n, ok := value.Compare(a, b); ok {
		return n
	}
	if x, ok := a.(value.Bool); ok {
		y := b.(value.Bool)
		switch {
		case x == y:
			return 0
		case !bool(x):
			return -1
		}
		return 1
	}
	return 0
}

// Len returns the number of objects. A closed realm has none.
func (res *Results) Len() int {
	return len(res.ids())
}

// At returns the object at index i, or nil when i is out of range.
func (res *Results) At(i int) *Object {
	ids := res.ids()
	if i < 0 || i >= len(ids) {
		return nil
	}
	return res.realm.object(res.os, ids[i])
}

// All iterates over the objects present when iteration starts.
func (res *Results) All() iter.Seq2[int, *Object] {
	return func(yield func(int, *Object) bool) {
		for i, id := range slices.Clone(res.ids()) {
			if !yield(i, res.realm.object(res.os, id)) {
				return
			}
		}
	}
}

// Objects returns the current objects as a slice.
func (res *Results) Objects() []*Object {
	ids := res.ids()
	out := make([]*Object, len(ids))
	for i, id := range ids {
		out[i] = res.realm.object(res.os, id)
	}
	return out
}

// Snapshot returns a frozen collection of the current objects. Objects
// deleted afterwards stay in the snapshot as invalid handles.
func (res *Results) Snapshot() *Results {
	frozen := slices.Clone(res.ids())
	if frozen == nil {
		frozen = []uint64{}
	}
	return &Results{realm: res.realm, os: res.os, pred: res.pred, frozen: frozen}
}

// Filtered returns a live collection narrowed by another predicate.
func (res *Results) Filtered(predicate string, params ...any) (*Results, error) {
	if err := res.realm.checkOpen(); err != nil {
		return nil, err
	}
	if res.frozen != nil {
		return nil, dberr.New(dberr.KindArgument, "cannot filter a snapshot").WithType(res.os.Name)
	}
	pred, err := query.Compile(res.os, predicate, params, res.realm.resolveLink)
	if err != nil {
		return nil, err
	}
	return &Results{
		realm:      res.realm,
		os:         res.os,
		pred:       res.pred.And(pred),
		sortBy:     res.sortBy,
		descending: res.descending,
	}, nil
}

// Sorted returns a live collection ordered by a property. Nulls sort
// first. Ties keep row order.
func (res *Results) Sorted(property string, descending bool) (*Results, error) {
	if err := res.realm.checkOpen(); err != nil {
		return nil, err
	}
	if res.frozen != nil {
		return nil, dberr.New(dberr.KindArgument, "cannot sort a snapshot").WithType(res.os.Name)
	}
	p, ok := res.os.Property(property)
	if !ok {
		return nil, dberr.New(dberr.KindUnknownProperty, "property is not declared").WithProperty(res.os.Name, property)
	}
	if !p.Type.Ordered() && p.Type != schema.TypeBool {
		return nil, dberr.New(dberr.KindArgument, "cannot sort by %s property", p.Type).WithProperty(res.os.Name, property)
	}
	return &Results{
		realm:      res.realm,
		os:         res.os,
		pred:       res.pred,
		sortBy:     p,
		descending: descending,
	}, nil
}
