package satori

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// wrapperTag encloses the fragment so the decoder sees one document
// element. The hyphenated name cannot clash with a Satori tag.
const wrapperTag = "x-root"

// Parse decodes Satori message content back into an element sequence.
// Content is a flat XML fragment; tags outside the recognized set come back
// as Unknown nodes rather than failing the parse.
func Parse(content string) ([]Element, error) {
	dec := xml.NewDecoder(strings.NewReader("<" + wrapperTag + ">" + content + "</" + wrapperTag + ">"))

	var (
		stack []*[]Element
		open  []func(children []Element) Element
		root  []Element
	)
	stack = append(stack, &root)

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse message content: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == wrapperTag && len(open) == 0 && len(root) == 0 {
				continue
			}
			attrs := attrMap(t.Attr)
			if leaf := buildLeaf(t.Name.Local, attrs); leaf != nil {
				// leaf tags may still be written as <tag></tag>; remember
				// the built node and ignore any (invalid) children
				node := leaf
				open = append(open, func([]Element) Element { return node })
				var discard []Element
				stack = append(stack, &discard)
				continue
			}
			open = append(open, containerBuilder(t.Name.Local, attrs))
			var children []Element
			stack = append(stack, &children)
		case xml.EndElement:
			if t.Name.Local == wrapperTag && len(open) == 0 {
				continue
			}
			if len(open) == 0 {
				return nil, fmt.Errorf("parse message content: unbalanced </%s>", t.Name.Local)
			}
			children := *stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			build := open[len(open)-1]
			open = open[:len(open)-1]
			appendTo(stack[len(stack)-1], build(children))
		case xml.CharData:
			text := string(t)
			if text != "" {
				appendTo(stack[len(stack)-1], &Text{Content: text})
			}
		}
	}

	return root, nil
}

func appendTo(dst *[]Element, e Element) {
	*dst = append(*dst, e)
}

func attrMap(attrs []xml.Attr) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

// buildLeaf constructs elements whose children carry no meaning.
func buildLeaf(tag string, attrs map[string]string) Element {
	switch tag {
	case "at":
		return &At{ID: attrs["id"], Name: attrs["name"], Type: attrs["type"]}
	case "quote":
		return &Quote{ID: attrs["id"]}
	case "img", "image":
		return &Img{
			Src:    attrs["src"],
			Width:  parseUint32(attrs["width"]),
			Height: parseUint32(attrs["height"]),
		}
	case "audio":
		return &Audio{
			Src:      attrs["src"],
			Title:    attrs["title"],
			Duration: parseFloat(attrs["duration"]),
		}
	case "br":
		return &Br{}
	default:
		return nil
	}
}

func containerBuilder(tag string, attrs map[string]string) func([]Element) Element {
	switch tag {
	case "a":
		return func(children []Element) Element {
			return &Link{Href: attrs["href"], Children: children}
		}
	case "p":
		return func(children []Element) Element {
			return &Paragraph{Children: children}
		}
	case "message":
		return func(children []Element) Element {
			return &Message{Children: children}
		}
	default:
		return func(children []Element) Element {
			return &Unknown{Tag: tag, Attrs: attrs, Children: children}
		}
	}
}

func parseUint32(s string) uint32 {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
