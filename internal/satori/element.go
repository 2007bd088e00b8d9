// Package satori models the standardized bot protocol surface: the message
// element tree, event and entity records, and the API route names.
package satori

import (
	"strconv"
	"strings"
)

// Element is one node of a Satori message tree. The concrete types below
// form a closed set; anything outside it parses as Unknown so a single
// unrecognized decoration never fails a whole message.
type Element interface {
	appendXML(sb *strings.Builder)
}

// Text is a plain text node.
type Text struct {
	Content string
}

// At mentions a user. Type "all" mentions every member; otherwise ID holds
// the target's numeric id as a string and Name an optional display name.
type At struct {
	ID   string
	Name string
	Type string
}

// Quote references an earlier message by id.
type Quote struct {
	ID string
}

// Img embeds an image by source reference.
type Img struct {
	Src    string
	Width  uint32
	Height uint32
}

// Audio embeds an audio clip by source reference.
type Audio struct {
	Src      string
	Title    string
	Duration float64
}

// Link is a hyperlink container. Children hold the annotated text, if any.
type Link struct {
	Href     string
	Children []Element
}

// Br is a line break.
type Br struct{}

// Paragraph is a block container followed by a line break when flattened.
type Paragraph struct {
	Children []Element
}

// Message is a nested message container.
type Message struct {
	Children []Element
}

// Unknown preserves an unrecognized tag and its subtree.
type Unknown struct {
	Tag      string
	Attrs    map[string]string
	Children []Element
}

func (e *Text) appendXML(sb *strings.Builder) {
	sb.WriteString(escapeText(e.Content))
}

func (e *At) appendXML(sb *strings.Builder) {
	sb.WriteString("<at")
	if e.Type != "" {
		writeAttr(sb, "type", e.Type)
	}
	if e.ID != "" {
		writeAttr(sb, "id", e.ID)
	}
	if e.Name != "" {
		writeAttr(sb, "name", e.Name)
	}
	sb.WriteString("/>")
}

func (e *Quote) appendXML(sb *strings.Builder) {
	sb.WriteString("<quote")
	writeAttr(sb, "id", e.ID)
	sb.WriteString("/>")
}

func (e *Img) appendXML(sb *strings.Builder) {
	sb.WriteString("<img")
	writeAttr(sb, "src", e.Src)
	if e.Width > 0 {
		writeAttr(sb, "width", strconv.FormatUint(uint64(e.Width), 10))
	}
	if e.Height > 0 {
		writeAttr(sb, "height", strconv.FormatUint(uint64(e.Height), 10))
	}
	sb.WriteString("/>")
}

func (e *Audio) appendXML(sb *strings.Builder) {
	sb.WriteString("<audio")
	writeAttr(sb, "src", e.Src)
	if e.Title != "" {
		writeAttr(sb, "title", e.Title)
	}
	if e.Duration > 0 {
		writeAttr(sb, "duration", strconv.FormatFloat(e.Duration, 'f', -1, 64))
	}
	sb.WriteString("/>")
}

func (e *Link) appendXML(sb *strings.Builder) {
	sb.WriteString("<a")
	writeAttr(sb, "href", e.Href)
	if len(e.Children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteString(">")
	for _, c := range e.Children {
		c.appendXML(sb)
	}
	sb.WriteString("</a>")
}

func (e *Br) appendXML(sb *strings.Builder) {
	sb.WriteString("<br/>")
}

func (e *Paragraph) appendXML(sb *strings.Builder) {
	sb.WriteString("<p>")
	for _, c := range e.Children {
		c.appendXML(sb)
	}
	sb.WriteString("</p>")
}

func (e *Message) appendXML(sb *strings.Builder) {
	sb.WriteString("<message>")
	for _, c := range e.Children {
		c.appendXML(sb)
	}
	sb.WriteString("</message>")
}

func (e *Unknown) appendXML(sb *strings.Builder) {
	sb.WriteString("<" + e.Tag)
	for k, v := range e.Attrs {
		writeAttr(sb, k, v)
	}
	if len(e.Children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteString(">")
	for _, c := range e.Children {
		c.appendXML(sb)
	}
	sb.WriteString("</" + e.Tag + ">")
}

// Dump serializes an element sequence into Satori message content.
func Dump(elements []Element) string {
	var sb strings.Builder
	for _, e := range elements {
		e.appendXML(&sb)
	}
	return sb.String()
}

func writeAttr(sb *strings.Builder, key, value string) {
	sb.WriteString(" " + key + `="` + escapeAttr(value) + `"`)
}

var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeAttr(s string) string { return attrEscaper.Replace(s) }

func escapeText(s string) string { return textEscaper.Replace(s) }
