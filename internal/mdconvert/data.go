package mdconvert

// Conversion is one question body rendered for reports.
type Conversion struct {
	markdown  string
	plainText string
	figures   []string
	links     []string
}

func NewConversion(markdown, plainText string, figures, links []string) Conversion {
	return Conversion{
		markdown:  markdown,
		plainText: plainText,
		figures:   figures,
		links:     links,
	}
}

func (c Conversion) Markdown() string {
	return c.markdown
}

// PlainText has every tag dropped and whitespace collapsed to single spaces.
func (c Conversion) PlainText() string {
	return c.plainText
}

// Figures are image sources in document order. Question diagrams live on a
// CDN and are referenced, never downloaded.
func (c Conversion) Figures() []string {
	return c.figures
}

// Links are anchor targets in document order, without in-page "#" anchors.
func (c Conversion) Links() []string {
	return c.links
}
