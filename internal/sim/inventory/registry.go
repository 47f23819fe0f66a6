package inventory

// Registry owns every container and the ownership relation. Containers are
// kept in an arena and addressed by generation-checked handles, so a stale
// handle resolves to nothing instead of to whatever reused the slot. The
// owner relation is a reverse index only; containers never store their owner.
type Registry struct {
	arena  []arenaEntry
	free   []uint32
	owners map[string][]Owned
}

type arenaEntry struct {
	gen       uint32
	container *Container // nil when the entry is free
	owner     string
	role      Role
}

// Owned pairs a container handle with the role it was created under.
type Owned struct {
	Handle Handle
	Role   Role
}

func NewRegistry() *Registry {
	return &Registry{owners: map[string][]Owned{}}
}

// Create allocates a container of the given capacity for owner and returns
// its handle. Generations start at 1; generation 0 is the nil handle.
func (r *Registry) Create(owner string, capacity int, role Role) Handle {
	if capacity < 0 {
		capacity = 0
	}
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.arena = append(r.arena, arenaEntry{})
		idx = uint32(len(r.arena) - 1)
	}
	e := &r.arena[idx]
	e.gen++
	if e.gen == 0 {
		e.gen = 1
	}
	e.container = newContainer(capacity)
	e.owner = owner
	e.role = role

	h := Handle{Index: idx, Gen: e.gen}
	r.owners[owner] = append(r.owners[owner], Owned{Handle: h, Role: role})
	return h
}

// Resolve returns the live container for h, or nil if h is stale or nil.
func (r *Registry) Resolve(h Handle) *Container {
	if h.IsNil() || int(h.Index) >= len(r.arena) {
		return nil
	}
	e := &r.arena[h.Index]
	if e.container == nil || e.gen != h.Gen {
		return nil
	}
	return e.container
}

// ResolvePair resolves two handles for a move. When both handles name the
// same container it returns that one instance twice, with same=true, so the
// caller never holds two independent views of one container.
func (r *Registry) ResolvePair(a, b Handle) (src, dst *Container, same bool) {
	src = r.Resolve(a)
	if a == b {
		return src, src, true
	}
	return src, r.Resolve(b), false
}

// Owner reports who owns the container behind h and under which role.
func (r *Registry) Owner(h Handle) (owner string, role Role, ok bool) {
	if r.Resolve(h) == nil {
		return "", "", false
	}
	e := &r.arena[h.Index]
	return e.owner, e.role, true
}

// ContainersOf lists owner's containers in creation order.
func (r *Registry) ContainersOf(owner string) []Owned {
	refs := r.owners[owner]
	out := make([]Owned, len(refs))
	copy(out, refs)
	return out
}

// Destroy removes a single container. Stale handles are a no-op.
func (r *Registry) Destroy(h Handle) bool {
	if r.Resolve(h) == nil {
		return false
	}
	e := &r.arena[h.Index]
	owner := e.owner
	e.container = nil
	e.owner = ""
	e.role = ""
	r.free = append(r.free, h.Index)

	refs := r.owners[owner]
	for i, ref := range refs {
		if ref.Handle == h {
			r.owners[owner] = append(refs[:i], refs[i+1:]...)
			break
		}
	}
	if len(r.owners[owner]) == 0 {
		delete(r.owners, owner)
	}
	return true
}

// DestroyOwner tears down every container the owner holds. Destroying an
// owner that holds nothing is a no-op.
func (r *Registry) DestroyOwner(owner string) int {
	refs := r.owners[owner]
	for _, ref := range refs {
		e := &r.arena[ref.Handle.Index]
		e.container = nil
		e.owner = ""
		e.role = ""
		r.free = append(r.free, ref.Handle.Index)
	}
	delete(r.owners, owner)
	return len(refs)
}

// Len reports how many containers are live.
func (r *Registry) Len() int {
	n := 0
	for i := range r.arena {
		if r.arena[i].container != nil {
			n++
		}
	}
	return n
}
