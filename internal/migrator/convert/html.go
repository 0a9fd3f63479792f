package convert

import (
	"strings"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/models"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Heading tag to level, h1 through h6.
var headingLevels = map[string]int{
	"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6,
}

// Converter turns rendered WordPress post HTML into structured content
// blocks: heading, paragraph, list and quote.
type Converter struct {
	markdown *md.Converter
	logger   zerolog.Logger
}

// NewConverter creates an HTML-to-blocks converter.
func NewConverter() *Converter {
	return &Converter{
		markdown: md.NewConverter("", true, nil),
		logger:   util.NewLogger(zerolog.ErrorLevel),
	}
}

// ToBlocks classifies the top-level elements of the fragment by tag and
// extracts their text. Inline markup is preserved as markdown so links and
// emphasis survive the trip. If nothing classifiable was found but the
// fragment still has text, that text collapses into a single fallback
// paragraph block.
func (c *Converter) ToBlocks(html string) ([]models.ContentBlock, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to parse HTML")
		return nil, err
	}

	var blocks []models.ContentBlock

	doc.Find("body").Children().Each(func(_ int, sel *goquery.Selection) {
		tag := goquery.NodeName(sel)

		switch {
		case headingLevels[tag] > 0:
			text := strings.TrimSpace(sel.Text())
			if text == "" {
				return
			}
			blocks = append(blocks, models.ContentBlock{
				Type:  models.BlockHeading,
				Level: headingLevels[tag],
				Text:  text,
			})

		case tag == "p":
			text := c.inlineText(sel)
			if text == "" {
				return
			}
			blocks = append(blocks, models.ContentBlock{
				Type: models.BlockParagraph,
				Text: text,
			})

		case tag == "ul" || tag == "ol":
			var items []string
			sel.Find("li").Each(func(_ int, li *goquery.Selection) {
				if item := c.inlineText(li); item != "" {
					items = append(items, item)
				}
			})
			if len(items) == 0 {
				return
			}
			blocks = append(blocks, models.ContentBlock{
				Type:    models.BlockList,
				Items:   items,
				Ordered: tag == "ol",
			})

		case tag == "blockquote":
			text := c.inlineText(sel)
			if text == "" {
				return
			}
			blocks = append(blocks, models.ContentBlock{
				Type: models.BlockQuote,
				Text: text,
			})
		}
	})

	if len(blocks) == 0 {
		if text := strings.TrimSpace(doc.Find("body").Text()); text != "" {
			blocks = append(blocks, models.ContentBlock{
				Type: models.BlockParagraph,
				Text: text,
			})
		}
	}

	return blocks, nil
}

// inlineText renders an element's inner HTML to single-line markdown,
// falling back to plain text extraction when conversion fails.
func (c *Converter) inlineText(sel *goquery.Selection) string {
	inner, err := sel.Html()
	if err != nil {
		return strings.TrimSpace(sel.Text())
	}

	markdown, err := c.markdown.ConvertString(inner)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to convert inline HTML to markdown")
		return strings.TrimSpace(sel.Text())
	}

	return strings.TrimSpace(strings.ReplaceAll(markdown, "\n", " "))
}
