package helpers

import (
	"fmt"
	"strings"

	"ssashelper/src/projerrors"

	"github.com/beevik/etree"
)

// Namespace URIs found in project files.
const (
	EngineNamespace            = "http://schemas.microsoft.com/analysisservices/2003/engine"
	Engine2Namespace           = "http://schemas.microsoft.com/analysisservices/2003/engine/2"
	Engine2_2Namespace         = "http://schemas.microsoft.com/analysisservices/2003/engine/2/2"
	Engine100Namespace         = "http://schemas.microsoft.com/analysisservices/2008/engine/100/100"
	DesignerNamespace          = "http://schemas.microsoft.com/DataWarehouse/Designer/1.0"
	XMLSchemaNamespace         = "http://www.w3.org/2001/XMLSchema"
	XMLSchemaInstanceNamespace = "http://www.w3.org/2001/XMLSchema-instance"
	MsPropNamespace            = "urn:schemas-microsoft-com:xml-msprop"
	MsDataNamespace            = "urn:schemas-microsoft-com:xml-msdata"
)

// Namespace binds a query prefix to a namespace URI.
type Namespace struct {
	Prefix string
	URI    string
}

// rootDeclarations are written, in this order, on the root of every serialized
// object file. The engine namespace is the default namespace and comes last.
var rootDeclarations = []Namespace{
	{"xsd", XMLSchemaNamespace},
	{"xsi", XMLSchemaInstanceNamespace},
	{"ddl2", Engine2Namespace},
	{"ddl2_2", Engine2_2Namespace},
	{"ddl100_100", Engine100Namespace},
	{"dwd", DesignerNamespace},
}

// Namespaces is the prefix table used to resolve qualified path queries such as
// "/AS:Cube/AS:MeasureGroups/AS:MeasureGroup/AS:ID". Prefixes in a query are
// resolved against this table, not against the prefixes a document happens to use.
type Namespaces struct {
	uris     map[string]string
	compiled map[string]etree.Path
}

// NewNamespaces builds the fixed prefix table for project files.
func NewNamespaces() *Namespaces {
	ns := &Namespaces{
		uris: map[string]string{
			"AS":     EngineNamespace,
			"xs":     XMLSchemaNamespace,
			"msprop": MsPropNamespace,
			"msdata": MsDataNamespace,
		},
		compiled: make(map[string]etree.Path),
	}
	for _, d := range rootDeclarations {
		ns.uris[d.Prefix] = d.URI
	}
	return ns
}

// URI returns the namespace bound to prefix.
func (n *Namespaces) URI(prefix string) (string, bool) {
	uri, ok := n.uris[prefix]
	return uri, ok
}

// RootDeclarations returns the prefixed namespaces declared on the root element
// of a serialized object file.
func (n *Namespaces) RootDeclarations() []Namespace {
	out := make([]Namespace, len(rootDeclarations))
	copy(out, rootDeclarations)
	return out
}

// Select evaluates a prefixed path query relative to scope. Absolute queries
// start from the document that owns scope. A query ending in "/@p:attr/.."
// selects the elements carrying that attribute.
func (n *Namespaces) Select(scope *etree.Element, query string) ([]*etree.Element, error) {
	if scope == nil {
		return nil, nil
	}

	base, attrSpace, attrKey, err := n.splitAttributeQuery(query)
	if err != nil {
		return nil, err
	}

	path, err := n.compile(base)
	if err != nil {
		return nil, err
	}

	nodes := scope.FindElementsPath(path)
	if attrKey == "" {
		return nodes, nil
	}

	var carrying []*etree.Element
	for _, e := range nodes {
		for _, a := range e.Attr {
			if a.Key == attrKey && a.Space != "" && ResolvePrefix(e, a.Space) == attrSpace {
				carrying = append(carrying, e)
				break
			}
		}
	}
	return carrying, nil
}

// splitAttributeQuery peels a trailing "@p:attr/.." off a query.
func (n *Namespaces) splitAttributeQuery(query string) (string, string, string, error) {
	if !strings.HasSuffix(query, "/..") {
		return query, "", "", nil
	}
	trimmed := strings.TrimSuffix(query, "/..")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 || !strings.HasPrefix(trimmed[i+1:], "@") {
		return query, "", "", nil
	}

	prefix, local, ok := strings.Cut(trimmed[i+2:], ":")
	if !ok {
		return "", "", "", projerrors.ErrInvalidArgument.New(fmt.Sprintf("unqualified attribute in query %q", query))
	}
	uri, found := n.uris[prefix]
	if !found {
		return "", "", "", projerrors.ErrInvalidArgument.New(fmt.Sprintf("unknown namespace prefix %q in query %q", prefix, query))
	}

	base := trimmed[:i+1]
	if !strings.HasSuffix(base, "//") {
		base = strings.TrimSuffix(base, "/")
	}
	if base == "" {
		base = "."
	}
	return base, uri, local, nil
}

// compile translates every "p:local" step into an etree filter on local name
// and namespace URI.
func (n *Namespaces) compile(query string) (etree.Path, error) {
	if p, ok := n.compiled[query]; ok {
		return p, nil
	}

	steps := strings.Split(query, "/")
	for i, step := range steps {
		prefix, local, ok := strings.Cut(step, ":")
		if !ok || strings.ContainsAny(prefix, "[@") {
			continue
		}
		uri, found := n.uris[prefix]
		if !found {
			return etree.Path{}, projerrors.ErrInvalidArgument.New(fmt.Sprintf("unknown namespace prefix %q in query %q", prefix, query))
		}
		steps[i] = fmt.Sprintf("*[local-name()='%s'][namespace-uri()='%s']", local, uri)
	}

	p, err := etree.CompilePath(strings.Join(steps, "/"))
	if err != nil {
		return etree.Path{}, projerrors.ErrInvalidArgument.New(fmt.Sprintf("query %q: %s", query, err))
	}
	n.compiled[query] = p
	return p, nil
}

// NodeExists reports whether any direct child of parent has the given element name.
func NodeExists(parent *etree.Element, name string) bool {
	if parent == nil {
		return false
	}
	space, tag := splitQualifiedName(name)
	for _, c := range parent.ChildElements() {
		if c.Tag == tag && (space == "" || c.Space == space) {
			return true
		}
	}
	return false
}

// RemoveNodes detaches every node from its parent and returns how many were removed.
func RemoveNodes(nodes []*etree.Element) int {
	removed := 0
	for _, node := range nodes {
		parent := node.Parent()
		if parent == nil {
			continue
		}
		if parent.RemoveChild(node) != nil {
			removed++
		}
	}
	return removed
}

// RemoveAttributes removes attributeName from every element and returns the
// number of elements processed, whether or not they carried the attribute.
func RemoveAttributes(nodes []*etree.Element, attributeName string) int {
	processed := 0
	for _, node := range nodes {
		node.RemoveAttr(attributeName)
		processed++
	}
	return processed
}

// ResolvePrefix returns the namespace URI bound to prefix in scope of e, or ""
// when no ancestor declares it.
func ResolvePrefix(e *etree.Element, prefix string) string {
	for ; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			if a.Space == "xmlns" && a.Key == prefix {
				return a.Value
			}
		}
	}
	return ""
}

func splitQualifiedName(name string) (string, string) {
	if prefix, local, ok := strings.Cut(name, ":"); ok {
		return prefix, local
	}
	return "", name
}
