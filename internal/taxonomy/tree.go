// Package taxonomy turns the flat term list of a CMS taxonomy into a
// parent/child forest with display paths such as "UI > Content Type > Entry".
package taxonomy

import (
	"sort"
	"strings"
)

const (
	PathSeparator   = " > "
	unnamedTermName = "Unnamed Term"
)

// RawTerm is a term as delivered by the CMS or the local taxonomy file.
// Field names vary, so it is kept as a generic JSON object.
type RawTerm map[string]any

// Term is a node of the built forest.
type Term struct {
	UID         string  `json:"uid"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ParentUID   *string `json:"parent_uid"`
	Children    []*Term `json:"children"`
	Level       int     `json:"level"`
	Path        string  `json:"path"`
}

// Tree is the result of BuildTermTree. Flat keeps input order.
type Tree struct {
	Roots []*Term `json:"tree"`
	Flat  []*Term `json:"flat"`
	index map[string]*Term
}

var (
	uidKeys  = []string{"uid", "id", "term_uid"}
	nameKeys = []string{"name", "title", "label"}
)

// BuildTermTree builds the forest. A term whose parent is absent, unknown or part
// of a parent cycle becomes a root, so construction always terminates.
func BuildTermTree(terms []RawTerm) *Tree {
	t := &Tree{
		Flat:  make([]*Term, 0, len(terms)),
		index: make(map[string]*Term, len(terms)),
	}

	for _, raw := range terms {
		uid := firstString(raw, uidKeys)
		if uid == "" {
			continue
		}
		if _, dup := t.index[uid]; dup {
			continue
		}
		name := firstString(raw, nameKeys)
		if name == "" {
			name = unnamedTermName
		}
		term := &Term{
			UID:         uid,
			Name:        name,
			Description: stringValue(raw["description"]),
			ParentUID:   parentUID(raw),
			Children:    []*Term{},
		}
		t.index[uid] = term
		t.Flat = append(t.Flat, term)
	}

	roots := t.breakCycles()

	for _, term := range t.Flat {
		if roots[term.UID] {
			t.Roots = append(t.Roots, term)
			continue
		}
		parent := t.index[*term.ParentUID]
		parent.Children = append(parent.Children, term)
	}

	paths := make(map[string]string, len(t.Flat))
	for _, term := range t.Flat {
		t.resolvePath(term, roots, paths)
	}

	sortChildren(t.Roots)
	return t
}

// breakCycles decides the root set. Walking up from each term with a visited
// set, the first term that would revisit an ancestor is cut loose as a root.
func (t *Tree) breakCycles() map[string]bool {
	roots := make(map[string]bool, len(t.Flat))
	settled := make(map[string]bool, len(t.Flat))

	for _, term := range t.Flat {
		var chain []*Term
		onChain := map[string]bool{}
		cur := term
		for cur != nil && !settled[cur.UID] {
			onChain[cur.UID] = true
			chain = append(chain, cur)

			if cur.ParentUID == nil {
				roots[cur.UID] = true
				break
			}
			parent, ok := t.index[*cur.ParentUID]
			if !ok {
				roots[cur.UID] = true
				break
			}
			if onChain[parent.UID] {
				// 环：最先闭合环的节点作为根
				roots[cur.UID] = true
				break
			}
			cur = parent
		}
		for _, n := range chain {
			settled[n.UID] = true
		}
	}
	return roots
}

// resolvePath walks up to the nearest root iteratively and memoizes every path.
func (t *Tree) resolvePath(term *Term, roots map[string]bool, paths map[string]string) string {
	if p, ok := paths[term.UID]; ok {
		return p
	}

	var chain []*Term
	cur := term
	for {
		if _, ok := paths[cur.UID]; ok {
			break
		}
		chain = append(chain, cur)
		if roots[cur.UID] {
			break
		}
		cur = t.index[*cur.ParentUID]
	}

	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		if roots[n.UID] {
			n.Level = 0
			n.Path = n.Name
		} else {
			parent := t.index[*n.ParentUID]
			n.Level = parent.Level + 1
			n.Path = paths[parent.UID] + PathSeparator + n.Name
		}
		paths[n.UID] = n.Path
	}
	return paths[term.UID]
}

func sortChildren(terms []*Term) {
	for _, term := range terms {
		if len(term.Children) == 0 {
			continue
		}
		sort.SliceStable(term.Children, func(i, j int) bool {
			return term.Children[i].Name < term.Children[j].Name
		})
		sortChildren(term.Children)
	}
}

// Lookup returns the term with the given uid.
func (t *Tree) Lookup(uid string) (*Term, bool) {
	term, ok := t.index[uid]
	return term, ok
}

// DescendantUIDs returns uid itself followed by every descendant in depth-first
// order. An unknown uid yields just itself so filtering still matches exact tags.
func (t *Tree) DescendantUIDs(uid string) []string {
	result := []string{uid}
	root, ok := t.index[uid]
	if !ok {
		return result
	}

	visited := map[string]bool{uid: true}
	stack := make([]*Term, 0, len(root.Children))
	for i := len(root.Children) - 1; i >= 0; i-- {
		stack = append(stack, root.Children[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n.UID] {
			continue
		}
		visited[n.UID] = true
		result = append(result, n.UID)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return result
}

// DescendantSet is DescendantUIDs as a set, handy for filtering.
func (t *Tree) DescendantSet(uid string) map[string]bool {
	uids := t.DescendantUIDs(uid)
	set := make(map[string]bool, len(uids))
	for _, u := range uids {
		set[u] = true
	}
	return set
}

func parentUID(raw RawTerm) *string {
	for _, key := range []string{"parent_uid", "parentUid"} {
		if s := stringValue(raw[key]); s != "" {
			return &s
		}
	}
	if parent, ok := raw["parent"].(map[string]any); ok {
		if s := stringValue(parent["uid"]); s != "" {
			return &s
		}
	}
	return nil
}

func firstString(raw RawTerm, keys []string) string {
	for _, key := range keys {
		if s := stringValue(raw[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
