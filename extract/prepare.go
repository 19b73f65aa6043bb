package extract

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"
)

// minReadableLength is the minimum readability TextContent length for the
// extraction to be considered valid. Below it we assume the algorithm missed
// the main content and fall back to the raw HTML.
const minReadableLength = 50

// mdConverter is goroutine-safe and reused for every conversion. The base
// plugin strips script/style/head noise, commonmark renders standard
// Markdown, and the table plugin keeps tabular data intact with minimal
// cell padding to save tokens.
var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// PrepareMarkdown reduces rendered page HTML to Markdown suited for LLM
// consumption: readability isolates the main content, then the converter
// renders it as Markdown with relative URLs resolved against the page URL.
//
// Preparation never fails outright. If readability chokes or extracts too
// little, the raw HTML is converted instead; if even conversion fails, the
// raw HTML is returned as-is.
func PrepareMarkdown(rawHTML, pageURL string) string {
	content := rawHTML

	if parsed, err := nurl.Parse(pageURL); err == nil {
		article, rerr := readability.FromReader(strings.NewReader(rawHTML), parsed)
		switch {
		case rerr != nil:
			slog.Warn("readability extraction failed, using raw HTML", "url", pageURL, "error", rerr)
		case len(strings.TrimSpace(article.TextContent)) < minReadableLength:
			slog.Warn("readability output too short, using raw HTML",
				"url", pageURL, "length", len(article.TextContent))
		default:
			content = article.Content
		}
	}

	domain := ""
	if u, err := nurl.Parse(pageURL); err == nil {
		domain = u.Scheme + "://" + u.Host
	}

	md, err := mdConverter.ConvertString(content, converter.WithDomain(domain))
	if err != nil {
		slog.Warn("markdown conversion failed, using raw HTML", "url", pageURL, "error", err)
		return content
	}
	return md
}
