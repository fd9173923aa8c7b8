package browser

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"golang.org/x/net/html"
)

const defaultStyleCacheSize = 64

// Only the properties that affect visibility are kept.
var visibilityProperties = map[string]bool{
	"display":    true,
	"visibility": true,
	"width":      true,
	"height":     true,
	"opacity":    true,
}

type declarations map[string]string

type declaration struct {
	property  string
	value     string
	important bool
}

type cssRule struct {
	selectors cascadia.SelectorGroup
	decls     []declaration
}

// styleCache holds parsed stylesheets keyed by their source text. Pages that share a
// stylesheet, such as repeated visits to the same page, skip reparsing it.
type styleCache struct {
	parsed *lru.Cache[string, []cssRule]
}

func newStyleCache(size int) (*styleCache, error) {
	if size <= 0 {
		size = defaultStyleCacheSize
	}
	c, err := lru.New[string, []cssRule](size)
	if err != nil {
		return nil, err
	}
	return &styleCache{parsed: c}, nil
}

func (c *styleCache) rules(source string) []cssRule {
	if rules, ok := c.parsed.Get(source); ok {
		return rules
	}
	rules := parseStylesheet(source)
	c.parsed.Add(source, rules)
	return rules
}

// cascadePriority orders competing declarations for one property of one element. It
// follows the CSS cascade for author styles: !important first, then inline over
// stylesheet, then selector specificity, then source order.
type cascadePriority struct {
	important   bool
	inline      bool
	specificity cascadia.Specificity
	order       int
}

func (p cascadePriority) less(other cascadePriority) bool {
	if p.important != other.important {
		return other.important
	}
	if p.inline != other.inline {
		return other.inline
	}
	if p.specificity != other.specificity {
		return p.specificity.Less(other.specificity)
	}
	return p.order < other.order
}

type candidate struct {
	value    string
	priority cascadePriority
}

type computedStyles struct {
	byNode map[*html.Node]declarations
}

func (c *computedStyles) of(n *html.Node) declarations {
	return c.byNode[n]
}

// compute resolves the visibility properties of every element from the page's <style>
// blocks and inline styles.
func (c *styleCache) compute(doc *goquery.Document) *computedStyles {
	winners := make(map[*html.Node]map[string]candidate)
	order := 0
	apply := func(n *html.Node, decls []declaration, inline bool, specificity cascadia.Specificity) {
		props := winners[n]
		if props == nil {
			props = make(map[string]candidate)
			winners[n] = props
		}
		for _, d := range decls {
			order++
			next := candidate{
				value:    d.value,
				priority: cascadePriority{important: d.important, inline: inline, specificity: specificity, order: order},
			}
			if current, ok := props[d.property]; !ok || current.priority.less(next.priority) {
				props[d.property] = next
			}
		}
	}

	root := doc.Nodes[0]
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if media, ok := s.Attr("media"); ok && !appliesToScreen(media) {
			return
		}
		for _, rule := range c.rules(s.Text()) {
			for _, sel := range rule.selectors {
				if sel.PseudoElement() != "" {
					continue
				}
				for _, n := range cascadia.QueryAll(root, sel) {
					apply(n, rule.decls, false, sel.Specificity())
				}
			}
		}
	})
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		apply(s.Nodes[0], parseInlineStyle(s.AttrOr("style", "")), true, cascadia.Specificity{})
	})

	ret := &computedStyles{byNode: make(map[*html.Node]declarations, len(winners))}
	for n, props := range winners {
		decls := make(declarations, len(props))
		for prop, won := range props {
			decls[prop] = won.value
		}
		ret.byNode[n] = decls
	}
	return ret
}

func appliesToScreen(media string) bool {
	media = strings.ToLower(strings.TrimSpace(media))
	return media == "" || strings.Contains(media, "all") || strings.Contains(media, "screen")
}

// parseStylesheet extracts the top-level style rules. Rules inside at-rule blocks such as
// @media are skipped, since we cannot evaluate their conditions. Rules whose selector
// cascadia cannot parse, including any with a pseudo-element, are dropped as a browser
// would drop them. A rule left open at the end of the source still applies.
func parseStylesheet(source string) []cssRule {
	p := css.NewParser(parse.NewInputString(source), false)
	var (
		rules       []cssRule
		selectors   []string
		current     *cssRule
		atRuleDepth int
	)
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if p.Err() == io.EOF {
				if current != nil && len(current.decls) > 0 {
					rules = append(rules, *current)
				}
				return rules
			}
		case css.BeginAtRuleGrammar:
			atRuleDepth++
		case css.EndAtRuleGrammar:
			atRuleDepth--
		case css.QualifiedRuleGrammar:
			selectors = append(selectors, selectorText(p.Values()))
		case css.BeginRulesetGrammar:
			selectors = append(selectors, selectorText(p.Values()))
			group, err := cascadia.ParseGroup(strings.Join(selectors, ","))
			selectors = nil
			if err != nil || atRuleDepth > 0 {
				current = nil
				continue
			}
			current = &cssRule{selectors: group}
		case css.DeclarationGrammar:
			if current != nil {
				if d, ok := newDeclaration(data, p.Values()); ok {
					current.decls = append(current.decls, d)
				}
			}
		case css.EndRulesetGrammar:
			if current != nil && len(current.decls) > 0 {
				rules = append(rules, *current)
			}
			current = nil
		}
	}
}

func parseInlineStyle(source string) []declaration {
	p := css.NewParser(parse.NewInputString(source), true)
	var ret []declaration
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if p.Err() == io.EOF {
				return ret
			}
		case css.DeclarationGrammar:
			if d, ok := newDeclaration(data, p.Values()); ok {
				ret = append(ret, d)
			}
		}
	}
}

func newDeclaration(property []byte, values []css.Token) (declaration, bool) {
	prop := strings.ToLower(string(property))
	if !visibilityProperties[prop] {
		return declaration{}, false
	}
	d := declaration{property: prop}
	// A trailing "!important" arrives as a delimiter followed by an identifier.
	values = trimWhitespaceTokens(values)
	if n := len(values); n >= 2 {
		last, bang := values[n-1], values[n-2]
		if last.TokenType == css.IdentToken && strings.EqualFold(string(last.Data), "important") &&
			bang.TokenType == css.DelimToken && string(bang.Data) == "!" {
			d.important = true
			values = values[:n-2]
		}
	}
	d.value = strings.ToLower(tokensText(values))
	return d, d.value != ""
}

func trimWhitespaceTokens(tokens []css.Token) []css.Token {
	for len(tokens) > 0 && tokens[0].TokenType == css.WhitespaceToken {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].TokenType == css.WhitespaceToken {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// selectorText renders one selector of a selector list, without the separating comma.
func selectorText(tokens []css.Token) string {
	for len(tokens) > 0 && tokens[0].TokenType == css.CommaToken {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].TokenType == css.CommaToken {
		tokens = tokens[:len(tokens)-1]
	}
	return tokensText(tokens)
}

func tokensText(tokens []css.Token) string {
	var buf strings.Builder
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken {
			buf.WriteByte(' ')
			continue
		}
		buf.Write(t.Data)
	}
	return strings.TrimSpace(buf.String())
}
