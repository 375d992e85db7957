package normalizer

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

type xmlNode struct {
	children map[string]any
	text     strings.Builder
}

// decodeXML converts a document into nested maps keyed by element local name.
// Leaf elements become strings, repeated siblings become []any, attributes are dropped.
func decodeXML(data []byte) (string, map[string]any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var (
		stack []*xmlNode
		names []string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", nil, errors.New("xml: no root element closed")
		}
		if err != nil {
			return "", nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, &xmlNode{})
			names = append(names, t.Name.Local)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return "", nil, errors.New("xml: unbalanced end element")
			}
			node := stack[len(stack)-1]
			name := names[len(names)-1]
			stack = stack[:len(stack)-1]
			names = names[:len(names)-1]

			if len(stack) == 0 {
				if node.children == nil {
					node.children = map[string]any{}
				}
				return name, node.children, nil
			}

			var value any
			if node.children != nil {
				value = node.children
			} else {
				value = strings.TrimSpace(node.text.String())
			}
			addChild(stack[len(stack)-1], name, value)
		}
	}
}

func addChild(parent *xmlNode, name string, value any) {
	if parent.children == nil {
		parent.children = make(map[string]any)
	}
	existing, ok := parent.children[name]
	if !ok {
		parent.children[name] = value
		return
	}
	if list, ok := existing.([]any); ok {
		parent.children[name] = append(list, value)
		return
	}
	parent.children[name] = []any{existing, value}
}
