package instrumentation

import (
	"strings"
	"unicode/utf8"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	maxElementText = 100

	trackAttr = "data-track"
	ctaAttr   = "data-cta"
	ctaMarker = "cta"
)

// OnClick is the single delegated click listener. It reports the nearest
// interactive ancestor of target and ignores clicks outside one.
func (p *Page) OnClick(target *html.Node) {
	if !p.sources.Clicks {
		return
	}
	node := interactiveAncestor(target)
	if node == nil {
		return
	}

	element := describeElement(node)
	path := p.Path()

	if marker, ok := attr(node, trackAttr); ok && strings.EqualFold(marker, ctaMarker) {
		name, _ := attr(node, ctaAttr)
		if name == "" {
			name = element.Text
		}
		p.recorder.CTA(path, name, element)
		return
	}
	p.recorder.Click(path, element)
}

// OnSubmit reports the form that target belongs to.
func (p *Page) OnSubmit(target *html.Node) {
	if !p.sources.Forms {
		return
	}
	var form *html.Node
	for n := target; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.DataAtom == atom.Form {
			form = n
			break
		}
	}
	if form == nil {
		p.logger.Instrumentation().Debug("Submit outside a form ignored")
		return
	}

	id, _ := attr(form, "id")
	name, _ := attr(form, "name")
	action, _ := attr(form, "action")
	method, _ := attr(form, "method")
	if method == "" {
		method = "GET"
	}
	p.recorder.FormSubmit(p.Path(), events.Form{
		ID:     id,
		Name:   name,
		Action: action,
		Method: strings.ToUpper(method),
	})
}

func interactiveAncestor(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if n.DataAtom == atom.A || n.DataAtom == atom.Button {
			return n
		}
		if role, _ := attr(n, "role"); role == "button" {
			return n
		}
		if _, ok := attr(n, trackAttr); ok {
			return n
		}
	}
	return nil
}

func describeElement(n *html.Node) events.Element {
	element := events.Element{
		Tag:  strings.ToLower(n.Data),
		Text: truncateRunes(collapseText(n), maxElementText),
	}
	element.ID, _ = attr(n, "id")
	element.Href, _ = attr(n, "href")
	element.Role, _ = attr(n, "role")
	return element
}

func collapseText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// FindByID returns the element with the given id attribute, or nil.
func FindByID(root *html.Node, id string) *html.Node {
	if root == nil {
		return nil
	}
	if root.Type == html.ElementNode {
		if value, ok := attr(root, "id"); ok && value == id {
			return root
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// DocumentTitle returns the collapsed text of the first <title> element.
func DocumentTitle(root *html.Node) string {
	if root == nil {
		return ""
	}
	if root.Type == html.ElementNode && root.DataAtom == atom.Title {
		return collapseText(root)
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if title := DocumentTitle(c); title != "" {
			return title
		}
	}
	return ""
}
