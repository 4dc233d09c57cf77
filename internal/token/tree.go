package token

import (
	"fmt"
	"slices"
	"strings"
)

// ID addresses a token in a Tree's arena.
type ID int

// None is the absent token.
const None ID = -1

type node struct {
	payload  Payload
	parent   ID
	children []ID
}

// Tree is an arena of tokens with ownership edges. Every token has at most
// one parent and a cycle can never form. Tokens are never freed: a
// detached token stays addressable but is no longer reachable.
//
// Besides the root, the tree keeps a list of extra tokens. Extras are
// parentless tops that still count as attached, so rules may stage
// fragments there.
type Tree struct {
	nodes   []node
	root    ID
	extras  []ID
	version uint64
}

// New returns a tree holding only a root token.
func New() *Tree {
	t := &Tree{}
	t.root = t.Add(Root{})
	return t
}

// Root returns the root token.
func (t *Tree) Root() ID { return t.root }

// Version increases on every successful mutation.
func (t *Tree) Version() uint64 { return t.version }

// Len returns the number of tokens ever allocated.
func (t *Tree) Len() int { return len(t.nodes) }

// Add allocates a detached token.
func (t *Tree) Add(p Payload) ID {
	if p == nil {
		panic("token: nil payload")
	}
	if _, isRoot := p.(Root); isRoot && len(t.nodes) > 0 {
		panic("token: only one root allowed")
	}
	t.nodes = append(t.nodes, node{payload: p, parent: None})
	t.version++
	return ID(len(t.nodes) - 1)
}

// AddComparison allocates a detached comparison token owning left and
// right. Both operands must be detached.
func (t *Tree) AddComparison(op string, left, right ID) (ID, error) {
	for _, c := range []ID{left, right} {
		if err := t.checkDetached(c); err != nil {
			return None, err
		}
	}
	if left == right {
		return None, structural(ErrCodeArity, left, "comparison operands must be distinct")
	}
	id := t.Add(Comparison{Op: op})
	t.nodes[id].children = []ID{left, right}
	t.nodes[left].parent = id
	t.nodes[right].parent = id
	return id, nil
}

func (t *Tree) valid(id ID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

func (t *Tree) mustValid(id ID) error {
	if !t.valid(id) {
		return structural(ErrCodeUnknownToken, id, "no such token")
	}
	return nil
}

// Payload returns the token's payload, or nil for an unknown id.
func (t *Tree) Payload(id ID) Payload {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].payload
}

// Kind returns the token's payload kind.
func (t *Tree) Kind(id ID) Kind {
	if !t.valid(id) {
		return KindInvalid
	}
	return t.nodes[id].payload.Kind()
}

// Parent returns the owning token, or None.
func (t *Tree) Parent(id ID) ID {
	if !t.valid(id) {
		return None
	}
	return t.nodes[id].parent
}

// Children returns a copy of the token's children in order.
func (t *Tree) Children(id ID) []ID {
	if !t.valid(id) {
		return nil
	}
	return slices.Clone(t.nodes[id].children)
}

// ChildCount returns the number of children.
func (t *Tree) ChildCount(id ID) int {
	if !t.valid(id) {
		return 0
	}
	return len(t.nodes[id].children)
}

// Child returns the i-th child, or None.
func (t *Tree) Child(id ID, i int) ID {
	if !t.valid(id) || i < 0 || i >= len(t.nodes[id].children) {
		return None
	}
	return t.nodes[id].children[i]
}

// Index returns the token's position among its parent's children, or -1.
func (t *Tree) Index(id ID) int {
	p := t.Parent(id)
	if p == None {
		return -1
	}
	return slices.Index(t.nodes[p].children, id)
}

// SetPayload replaces the payload of a token in place.
func (t *Tree) SetPayload(id ID, p Payload) error {
	if err := t.mustValid(id); err != nil {
		return err
	}
	if p == nil {
		return structural(ErrCodeUnexpectedKind, id, "nil payload")
	}
	_, wasRoot := t.nodes[id].payload.(Root)
	_, isRoot := p.(Root)
	if wasRoot || isRoot {
		return structural(ErrCodeRootMutation, id, "root payload cannot change")
	}
	n := len(t.nodes[id].children)
	if _, ok := p.(Comparison); ok && n != 0 && n != 2 {
		return structural(ErrCodeArity, id, "comparison needs 0 or 2 children, token has %d", n)
	}
	t.nodes[id].payload = p
	t.version++
	return nil
}

func (t *Tree) isExtra(id ID) bool {
	return slices.Contains(t.extras, id)
}

func (t *Tree) checkDetached(id ID) error {
	if err := t.mustValid(id); err != nil {
		return err
	}
	if id == t.root {
		return structural(ErrCodeRootMutation, id, "root cannot be moved")
	}
	if t.nodes[id].parent != None || t.isExtra(id) {
		return structural(ErrCodeNotDetached, id, "token is already attached")
	}
	return nil
}

// AppendChild attaches a detached child as the last child of parent.
func (t *Tree) AppendChild(parent, child ID) error {
	return t.InsertChild(parent, t.ChildCount(parent), child)
}

// InsertChild attaches a detached child at position pos of parent.
// Comparisons are built with AddComparison and cannot gain children.
func (t *Tree) InsertChild(parent ID, pos int, child ID) error {
	if err := t.mustValid(parent); err != nil {
		return err
	}
	if err := t.checkDetached(child); err != nil {
		return err
	}
	if t.Kind(parent) == KindComparison {
		return structural(ErrCodeArity, parent, "comparison children are fixed")
	}
	if child == parent || t.IsAncestor(child, parent) {
		return structural(ErrCodeCycle, child, "token %d would own itself", child)
	}
	kids := t.nodes[parent].children
	if pos < 0 || pos > len(kids) {
		return structural(ErrCodeUnexpectedKind, parent, "insert position %d out of range", pos)
	}
	t.nodes[parent].children = slices.Insert(kids, pos, child)
	t.nodes[child].parent = parent
	t.version++
	return nil
}

// unlink removes id from its parent. A comparison that loses one operand
// also releases the other so it never keeps a single child.
func (t *Tree) unlink(id ID) {
	p := t.nodes[id].parent
	if p == None {
		return
	}
	t.nodes[p].children = slices.DeleteFunc(t.nodes[p].children, func(c ID) bool { return c == id })
	t.nodes[id].parent = None
	if t.nodes[p].payload.Kind() == KindComparison {
		for _, c := range t.nodes[p].children {
			t.nodes[c].parent = None
		}
		t.nodes[p].children = nil
	}
}

// Replace puts repl in old's slot and detaches old. repl may be None, which
// removes old outright. repl must be detached or a descendant of old.
func (t *Tree) Replace(old, repl ID) error {
	if err := t.mustValid(old); err != nil {
		return err
	}
	if old == t.root {
		return structural(ErrCodeRootMutation, old, "root cannot be replaced")
	}
	if repl == old {
		return nil
	}
	if repl != None {
		if err := t.mustValid(repl); err != nil {
			return err
		}
		if repl == t.root {
			return structural(ErrCodeRootMutation, repl, "root cannot be moved")
		}
		if t.IsAncestor(repl, old) {
			return structural(ErrCodeCycle, repl, "replacement contains the token it replaces")
		}
		if (t.nodes[repl].parent != None || t.isExtra(repl)) && !t.IsAncestor(old, repl) {
			return structural(ErrCodeNotDetached, repl, "replacement is attached elsewhere")
		}
	}

	parent := t.nodes[old].parent
	if parent == None {
		if i := slices.Index(t.extras, old); i >= 0 {
			if repl == None {
				t.extras = slices.Delete(t.extras, i, i+1)
			} else {
				t.unlink(repl)
				t.extras[i] = repl
			}
			t.version++
			return nil
		}
		return &ParentlessNodeError{Token: old, Kind: t.Kind(old)}
	}
	if repl == None && t.Kind(parent) == KindComparison {
		return structural(ErrCodeArity, parent, "cannot remove a single comparison operand")
	}

	if repl != None {
		t.unlink(repl)
	}
	kids := t.nodes[parent].children
	i := slices.Index(kids, old)
	if repl == None {
		t.nodes[parent].children = slices.Delete(kids, i, i+1)
	} else {
		kids[i] = repl
		t.nodes[repl].parent = parent
	}
	t.nodes[old].parent = None
	t.version++
	return nil
}

// Delete detaches id. When id is a comparison operand the comparison is
// replaced by the surviving operand. Extra tops have no parent and are
// removed with RemoveExtra instead.
func (t *Tree) Delete(id ID) error {
	if err := t.mustValid(id); err != nil {
		return err
	}
	if id == t.root {
		return structural(ErrCodeRootMutation, id, "root cannot be deleted")
	}
	p := t.nodes[id].parent
	if p == None {
		return &ParentlessNodeError{Token: id, Kind: t.Kind(id)}
	}
	if t.Kind(p) != KindComparison {
		t.unlink(id)
		t.version++
		return nil
	}

	sibling := t.nodes[p].children[0]
	if sibling == id {
		sibling = t.nodes[p].children[1]
	}
	if t.nodes[p].parent == None && !t.isExtra(p) {
		return &ParentlessNodeError{Token: p, Kind: KindComparison}
	}
	return t.Replace(p, sibling)
}

// Splice replaces id by its children, in order, in its parent's slot.
func (t *Tree) Splice(id ID) error {
	if err := t.mustValid(id); err != nil {
		return err
	}
	p := t.nodes[id].parent
	if p == None {
		return &ParentlessNodeError{Token: id, Kind: t.Kind(id)}
	}
	kids := t.nodes[id].children
	if t.Kind(p) == KindComparison && len(kids) != 1 {
		return structural(ErrCodeArity, p, "splicing %d tokens into a comparison", len(kids))
	}
	siblings := t.nodes[p].children
	i := slices.Index(siblings, id)
	next := make([]ID, 0, len(siblings)-1+len(kids))
	next = append(next, siblings[:i]...)
	next = append(next, kids...)
	next = append(next, siblings[i+1:]...)
	for _, c := range kids {
		t.nodes[c].parent = p
	}
	t.nodes[p].children = next
	t.nodes[id].children = nil
	t.nodes[id].parent = None
	t.version++
	return nil
}

// Release detaches and returns all children of a detached token. It is the
// way to reuse the operands of a token that has just been replaced.
func (t *Tree) Release(id ID) ([]ID, error) {
	if err := t.mustValid(id); err != nil {
		return nil, err
	}
	if t.Attached(id) {
		return nil, structural(ErrCodeNotDetached, id, "release needs a detached token")
	}
	kids := t.nodes[id].children
	for _, c := range kids {
		t.nodes[c].parent = None
	}
	t.nodes[id].children = nil
	t.version++
	return kids, nil
}

// AddExtra registers a detached token as an extra top.
func (t *Tree) AddExtra(id ID) error {
	if err := t.checkDetached(id); err != nil {
		return err
	}
	t.extras = append(t.extras, id)
	t.version++
	return nil
}

// RemoveExtra unregisters an extra top, leaving it detached.
func (t *Tree) RemoveExtra(id ID) error {
	if err := t.mustValid(id); err != nil {
		return err
	}
	i := slices.Index(t.extras, id)
	if i < 0 {
		return &ParentlessNodeError{Token: id, Kind: t.Kind(id)}
	}
	t.extras = slices.Delete(t.extras, i, i+1)
	t.version++
	return nil
}

// Extras returns the extra tops in registration order.
func (t *Tree) Extras() []ID { return slices.Clone(t.extras) }

// IsAncestor reports whether a is a strict ancestor of d.
func (t *Tree) IsAncestor(a, d ID) bool {
	if !t.valid(a) || !t.valid(d) {
		return false
	}
	for p := t.nodes[d].parent; p != None; p = t.nodes[p].parent {
		if p == a {
			return true
		}
	}
	return false
}

// Top returns the topmost ancestor of id (id itself when parentless).
func (t *Tree) Top(id ID) ID {
	if !t.valid(id) {
		return None
	}
	for t.nodes[id].parent != None {
		id = t.nodes[id].parent
	}
	return id
}

// Depth returns the distance from id to its top.
func (t *Tree) Depth(id ID) int {
	d := 0
	for p := t.Parent(id); p != None; p = t.Parent(p) {
		d++
	}
	return d
}

// Attached reports whether id is reachable from the root or an extra.
func (t *Tree) Attached(id ID) bool {
	top := t.Top(id)
	return top != None && (top == t.root || t.isExtra(top))
}

// Ancestors returns id's ancestors, nearest first.
func (t *Tree) Ancestors(id ID) []ID {
	var out []ID
	for p := t.Parent(id); p != None; p = t.Parent(p) {
		out = append(out, p)
	}
	return out
}

// Walk visits id and its descendants in pre-order. Returning false from fn
// skips the token's subtree.
func (t *Tree) Walk(id ID, fn func(id ID, depth int) bool) {
	if !t.valid(id) {
		return
	}
	var visit func(ID, int)
	visit = func(n ID, d int) {
		if !fn(n, d) {
			return
		}
		for _, c := range t.nodes[n].children {
			visit(c, d+1)
		}
	}
	visit(id, 0)
}

// PreOrder returns id and its descendants in pre-order.
func (t *Tree) PreOrder(id ID) []ID {
	var out []ID
	t.Walk(id, func(n ID, _ int) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Preceding returns the token before id in the pre-order of id's top, or
// None.
func (t *Tree) Preceding(id ID) ID {
	order := t.PreOrder(t.Top(id))
	i := slices.Index(order, id)
	if i <= 0 {
		return None
	}
	return order[i-1]
}

// Following returns the token after id in the pre-order of id's top, or
// None.
func (t *Tree) Following(id ID) ID {
	order := t.PreOrder(t.Top(id))
	i := slices.Index(order, id)
	if i < 0 || i+1 >= len(order) {
		return None
	}
	return order[i+1]
}

// Dump renders the subtree under id, one token per line.
func (t *Tree) Dump(id ID) string {
	var b strings.Builder
	t.Walk(id, func(n ID, depth int) bool {
		fmt.Fprintf(&b, "%s#%d %s\n", strings.Repeat("  ", depth), n, describe(t.nodes[n].payload))
		return true
	})
	return b.String()
}

func describe(p Payload) string {
	switch v := p.(type) {
	case Root:
		return "root"
	case Wrapped:
		return "wrapped " + ASTKind(v.Node)
	case Sequence:
		s := "sequence " + string(v.Role)
		if v.Op != "" {
			s += " " + v.Op
		}
		if v.Lowered {
			s += " lowered"
		}
		return s
	case Literal:
		return fmt.Sprintf("literal %q %s", v.Text, v.POS)
	case Comparison:
		return "comparison " + v.Op
	case Attribute:
		return fmt.Sprintf("attribute %s.%s", v.Alias, v.Column)
	case TableEntity:
		return fmt.Sprintf("table_entity %s %s", v.Table, v.Alias)
	case InRelationship:
		return fmt.Sprintf("in_relationship %s #%d #%d", v.Relationship, v.Left, v.Right)
	case AllAttributes:
		return "all_attributes " + v.Alias
	default:
		return p.Kind().String()
	}
}
