// Package extract turns fetched pages into plain text.
package extract

import (
	"fmt"
	"html"
	"mime"
	"net/http"
	"regexp"
	"strings"

	"research/internal/domain"
	"research/internal/port"
)

// HTMLExtractor strips markup from HTML pages and passes plain text through.
// It prefers the page's <article>, then <main>, then <body>.
type HTMLExtractor struct{}

var _ port.Extractor = (*HTMLExtractor)(nil)

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

func (e *HTMLExtractor) Extract(page *domain.FetchedPage) (string, error) {
	if page == nil || len(page.Body) == 0 {
		return "", domain.ErrNoContent
	}

	var text string
	switch mediaType(page) {
	case "text/html", "application/xhtml+xml":
		text = stripHTML(mainContent(string(page.Body)))
	case "text/plain", "text/markdown":
		text = normalizeText(string(page.Body))
	default:
		return "", fmt.Errorf("%w: unsupported content type %q", domain.ErrNoContent, page.ContentType)
	}

	if text == "" {
		return "", domain.ErrNoContent
	}
	return text, nil
}

// mediaType returns the declared media type, sniffing the body when the
// server did not send one.
func mediaType(page *domain.FetchedPage) string {
	ct := page.ContentType
	if ct == "" {
		ct = http.DetectContentType(page.Body)
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	return mt
}

var (
	articleTag        = regexp.MustCompile(`(?is)<article[^>]*>(.*?)</article>`)
	mainTag           = regexp.MustCompile(`(?is)<main[^>]*>(.*)</main>`)
	bodyTag           = regexp.MustCompile(`(?is)<body[^>]*>(.*)</body>`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	navTag            = regexp.MustCompile(`(?is)<(nav|aside|footer)[^>]*>.*?</(nav|aside|footer)>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article|ul|ol)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article|ul|ol)(\s[^>]*)?>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t\f\v\r]+`)
	multiNewlines     = regexp.MustCompile(`\n{3,}`)
)

// mainContent narrows the document to its most specific content container.
// Multiple <article> elements are concatenated.
func mainContent(doc string) string {
	if matches := articleTag.FindAllStringSubmatch(doc, -1); len(matches) > 0 {
		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			parts = append(parts, m[1])
		}
		if joined := strings.Join(parts, "\n\n"); strings.TrimSpace(allTags.ReplaceAllString(joined, "")) != "" {
			return joined
		}
	}
	for _, re := range []*regexp.Regexp{mainTag, bodyTag} {
		if m := re.FindStringSubmatch(doc); m != nil {
			return m[1]
		}
	}
	return doc
}

// stripHTML removes markup and keeps paragraph breaks as blank lines.
func stripHTML(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	content = navTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	content = openBlockElements.ReplaceAllString(content, "\n\n")
	content = blockElements.ReplaceAllString(content, "\n\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n\n")

	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	return normalizeText(content)
}

// normalizeText trims every line, collapses runs of spaces and limits blank
// lines to one.
func normalizeText(content string) string {
	content = strings.ReplaceAll(content, "\u00a0", " ")
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	content = strings.Join(lines, "\n")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
