package mdconvert

import (
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
	"golang.org/x/net/html"
)

/*
Question bodies arrive as HTML fragments (paragraphs, inline math markup,
images, occasional tables). Reports need them as Markdown and as plain text.

Conversion Rules
- Paragraphs, emphasis, lists and tables map to GitHub-Flavored Markdown
- Images and links are kept as-is, never resolved or downloaded
- DOM order preserved
- Plain text drops every tag and collapses whitespace

A fragment without markup converts to itself.
*/

// ConvertRule converts one question body.
type ConvertRule interface {
	Convert(fragment string) (Conversion, failure.ClassifiedError)
}

// Compile-time interface check
var _ ConvertRule = (*StrictConversionRule)(nil)

type StrictConversionRule struct {
	metadataSink metadata.MetadataSink
	conv         *converter.Converter
}

func NewRule(metadataSink metadata.MetadataSink) *StrictConversionRule {
	return &StrictConversionRule{
		metadataSink: metadataSink,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (s *StrictConversionRule) Convert(fragment string) (Conversion, failure.ClassifiedError) {
	conversion, conversionError := convert(s.conv, fragment)
	if conversionError != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"mdconvert",
			"StrictConversionRule.Convert",
			mapConversionErrorToMetadataCause(conversionError),
			conversionError.Error(),
			[]metadata.Attribute{},
		)
		return Conversion{}, conversionError
	}
	return conversion, nil
}

func convert(conv *converter.Converter, fragment string) (Conversion, *ConversionError) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return Conversion{}, &ConversionError{
			Message: err.Error(),
			Cause:   ErrCauseParseFailure,
			Err:     err,
		}
	}

	markdown, err := conv.ConvertNode(doc)
	if err != nil {
		return Conversion{}, &ConversionError{
			Message: err.Error(),
			Cause:   ErrCauseConversionFailure,
			Err:     err,
		}
	}

	selection := goquery.NewDocumentFromNode(doc).Selection
	figures, links := extractReferences(selection)
	return NewConversion(
		strings.TrimSpace(string(markdown)),
		plainText(selection),
		figures,
		links,
	), nil
}

// PlainText returns the text content of an HTML fragment. Unparseable input
// is returned trimmed but otherwise unchanged.
func PlainText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return plainText(goquery.NewDocumentFromNode(doc).Selection)
}

func plainText(doc *goquery.Selection) string {
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}

// extractReferences collects <img src> and <a href> targets in document
// order. In-page anchors are skipped.
func extractReferences(doc *goquery.Selection) (figures []string, links []string) {
	doc.Find("a[href], img[src]").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "img":
			if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
				figures = append(figures, src)
			}
		case "a":
			if href := strings.TrimSpace(s.AttrOr("href", "")); href != "" && !strings.HasPrefix(href, "#") {
				links = append(links, href)
			}
		}
	})
	return figures, links
}
