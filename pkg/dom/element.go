package dom

import "strings"

// Element is a node of the host document. Only what the tracker reads is
// modelled: tag, attributes, visible text and the parent link.
type Element struct {
	Tag    string
	Attrs  map[string]string
	Text   string
	Parent *Element
}

// NewElement creates an element with the given tag and attributes.
// Tags are normalised to lower case.
func NewElement(tag string, attrs map[string]string) *Element {
	return &Element{Tag: strings.ToLower(tag), Attrs: attrs}
}

// Append sets e as the parent of child and returns child.
func (e *Element) Append(child *Element) *Element {
	child.Parent = e
	return child
}

// Attr returns the attribute value, or "" when it is not set.
func (e *Element) Attr(name string) string {
	if e == nil || e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// Closest walks from e up through its ancestors and returns the first
// element whose tag is one of tags, or nil.
func (e *Element) Closest(tags ...string) *Element {
	for el := e; el != nil; el = el.Parent {
		for _, tag := range tags {
			if strings.EqualFold(el.Tag, tag) {
				return el
			}
		}
	}
	return nil
}
