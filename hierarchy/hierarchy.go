package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	iradix "github.com/hashicorp/go-immutable-radix"
	lru "github.com/hashicorp/golang-lru"

	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/filter"
)

// Separator joins the segments of a normalized logger name.
const Separator = "."

// DefaultCacheSize is how many resolved targets a Tree remembers.
const DefaultCacheSize = 4096

// RootSpec configures the root logger. The root always has an explicit
// level and appender list since nothing sits above it.
type RootSpec struct {
	Level     core.Level
	Appenders []string
	Filters   []filter.Filter
}

// NodeSpec configures a named logger. Nil fields inherit from the parent.
type NodeSpec struct {
	// Level is the node's threshold; nil inherits
	Level *core.Level
	// Appenders lists appender names. Nil inherits; a non-nil empty list is
	// an explicit empty list, which only silences the subtree together with
	// Additive=false.
	Appenders []string
	// Filters run before fan-out for events resolved through this node;
	// nil inherits the nearest ancestor's filters
	Filters []filter.Filter
	// Additive unions the node's appenders with its ancestors'. When false
	// and Appenders is set, inheritance of appenders stops here.
	Additive bool
}

// Effective is the resolved configuration for one target. It is shared
// between callers and must not be modified.
type Effective struct {
	// Target is the normalized target name
	Target string
	// Level is the nearest explicit level
	Level core.Level
	// Appenders is the ordered, de-duplicated appender set, nearest first
	Appenders []string
	// Filters is the nearest explicit filter list
	Filters filter.Chain
}

// Enabled reports whether an event at level l passes the level gate.
func (e *Effective) Enabled(l core.Level) bool {
	return l.Enabled(e.Level)
}

// node is one entry of the tree. Implicit nodes were created as ancestors
// of a registered name and carry no settings.
type node struct {
	name     string
	spec     NodeSpec
	explicit bool
}

// Normalize converts "a::b" to "a.b". The root is "".
func Normalize(name string) string {
	if strings.Contains(name, "::") {
		return strings.ReplaceAll(name, "::", Separator)
	}
	return name
}

// Validate reports whether name is usable as a logger name: no empty
// segments once normalized.
func Validate(name string) error {
	n := Normalize(name)
	if n == "" {
		return nil
	}
	for _, seg := range strings.Split(n, Separator) {
		if seg == "" {
			return fmt.Errorf("logger name %q has an empty segment", name)
		}
	}
	return nil
}

// Builder collects logger nodes and produces an immutable Tree.
// A Builder is not safe for concurrent use.
type Builder struct {
	root      RootSpec
	nodes     map[string]NodeSpec
	cacheSize int
}

// NewBuilder creates a builder whose root logger is configured by root.
func NewBuilder(root RootSpec) *Builder {
	return &Builder{root: root, nodes: make(map[string]NodeSpec), cacheSize: DefaultCacheSize}
}

// SetCacheSize bounds the number of resolved targets the built tree keeps.
// Values below one disable the cache.
func (b *Builder) SetCacheSize(n int) {
	b.cacheSize = n
}

// Register inserts or replaces the node called name. Registering "" updates
// the root, which requires an explicit level and appender list.
func (b *Builder) Register(name string, spec NodeSpec) error {
	if err := Validate(name); err != nil {
		return err
	}
	n := Normalize(name)
	if n == "" {
		if spec.Level == nil {
			return fmt.Errorf("root logger requires an explicit level")
		}
		if spec.Appenders == nil {
			return fmt.Errorf("root logger requires an explicit appender list")
		}
		b.root = RootSpec{Level: *spec.Level, Appenders: spec.Appenders, Filters: spec.Filters}
		return nil
	}
	b.nodes[n] = spec
	return nil
}

// Build freezes the registered nodes into a Tree. The builder may be
// reused; later registrations do not affect the returned tree.
func (b *Builder) Build() *Tree {
	txn := iradix.New().Txn()
	for name, spec := range b.nodes {
		// Implicit ancestors are pure inheritance nodes.
		for i := strings.Index(name, Separator); i >= 0; {
			prefix := name[:i]
			if _, ok := b.nodes[prefix]; !ok {
				txn.Insert(key(prefix), &node{name: prefix})
			}
			next := strings.Index(name[i+1:], Separator)
			if next < 0 {
				break
			}
			i += next + 1
		}
		txn.Insert(key(name), &node{name: name, spec: cloneSpec(spec), explicit: true})
	}
	var cache *lru.Cache
	if b.cacheSize > 0 {
		cache, _ = lru.New(b.cacheSize)
	}
	return &Tree{
		cache: cache,
		root: RootSpec{
			Level:     b.root.Level,
			Appenders: append([]string{}, b.root.Appenders...),
			Filters:   append([]filter.Filter(nil), b.root.Filters...),
		},
		nodes: txn.Commit(),
	}
}

func cloneSpec(s NodeSpec) NodeSpec {
	if s.Level != nil {
		l := *s.Level
		s.Level = &l
	}
	if s.Appenders != nil {
		s.Appenders = append([]string{}, s.Appenders...)
	}
	if s.Filters != nil {
		s.Filters = append([]filter.Filter{}, s.Filters...)
	}
	return s
}

// key terminates names with the separator so that "ab" is not a prefix
// match for "a".
func key(name string) []byte {
	return []byte(name + Separator)
}

// Tree is an immutable logger hierarchy. Resolution results are memoized
// per target in a bounded cache; a reconfiguration builds a new tree, which
// starts with an empty one.
type Tree struct {
	root  RootSpec
	nodes *iradix.Tree
	cache *lru.Cache // raw target -> *Effective, nil when disabled
}

// Root returns the root logger's configuration.
func (t *Tree) Root() RootSpec { return t.root }

// Resolve computes the effective configuration for target.
func (t *Tree) Resolve(target string) *Effective {
	if t.cache == nil {
		return t.resolve(target)
	}
	// Peek only takes the read lock; eviction is by insertion age.
	if v, ok := t.cache.Peek(target); ok {
		return v.(*Effective)
	}
	eff := t.resolve(target)
	if prev, ok, _ := t.cache.PeekOrAdd(target, eff); ok {
		return prev.(*Effective)
	}
	return eff
}

func (t *Tree) resolve(target string) *Effective {
	name := Normalize(target)

	// Ancestors come out of WalkPath shortest first.
	var path []*node
	if name != "" {
		t.nodes.Root().WalkPath(key(name), func(_ []byte, v interface{}) bool {
			path = append(path, v.(*node))
			return false
		})
	}

	eff := &Effective{Target: name}
	levelSet, filtersSet := false, false
	seen := make(map[string]struct{})
	collecting := true

	for i := len(path) - 1; i >= 0; i-- {
		n := path[i]
		if !n.explicit {
			continue
		}
		if !levelSet && n.spec.Level != nil {
			eff.Level = *n.spec.Level
			levelSet = true
		}
		if !filtersSet && n.spec.Filters != nil {
			eff.Filters = n.spec.Filters
			filtersSet = true
		}
		if collecting && n.spec.Appenders != nil {
			eff.Appenders = appendUnique(eff.Appenders, seen, n.spec.Appenders)
			if !n.spec.Additive {
				collecting = false
			}
		}
	}

	if !levelSet {
		eff.Level = t.root.Level
	}
	if !filtersSet {
		eff.Filters = t.root.Filters
	}
	if collecting {
		eff.Appenders = appendUnique(eff.Appenders, seen, t.root.Appenders)
	}
	if eff.Appenders == nil {
		eff.Appenders = []string{}
	}
	return eff
}

func appendUnique(dst []string, seen map[string]struct{}, names []string) []string {
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		dst = append(dst, name)
	}
	return dst
}

// References returns every appender name referenced by the root or any
// node, sorted.
func (t *Tree) References() []string {
	set := make(map[string]struct{})
	for _, name := range t.root.Appenders {
		set[name] = struct{}{}
	}
	t.nodes.Root().Walk(func(_ []byte, v interface{}) bool {
		for _, name := range v.(*node).spec.Appenders {
			set[name] = struct{}{}
		}
		return false
	})
	refs := make([]string, 0, len(set))
	for name := range set {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs
}

// Names returns the names of all nodes, implicit ancestors included, in
// lexical order.
func (t *Tree) Names() []string {
	var names []string
	t.nodes.Root().Walk(func(_ []byte, v interface{}) bool {
		names = append(names, v.(*node).name)
		return false
	})
	return names
}

// Lookup returns the settings registered for name. ok is false for
// implicit and unknown nodes.
func (t *Tree) Lookup(name string) (NodeSpec, bool) {
	v, found := t.nodes.Get(key(Normalize(name)))
	if !found {
		return NodeSpec{}, false
	}
	n := v.(*node)
	return n.spec, n.explicit
}
