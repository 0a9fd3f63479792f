package convert

import (
	"strings"
	"testing"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/models"
)

func TestToBlocksClassification(t *testing.T) {
	converter := NewConverter()

	html := `
<h2>Sailing the Fjords</h2>
<p>Our first stop was <strong>Geiranger</strong>.</p>
<ul>
  <li>Pack layers</li>
  <li>Book shore excursions early</li>
</ul>
<ol>
  <li>Bergen</li>
  <li>Ålesund</li>
</ol>
<blockquote>The best views come after the hardest climbs.</blockquote>
`

	blocks, err := converter.ToBlocks(html)
	if err != nil {
		t.Fatalf("ToBlocks failed: %v", err)
	}

	if len(blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d: %+v", len(blocks), blocks)
	}

	heading := blocks[0]
	if heading.Type != models.BlockHeading || heading.Level != 2 {
		t.Errorf("block 0 = %+v, want h2 heading", heading)
	}
	if heading.Text != "Sailing the Fjords" {
		t.Errorf("heading text = %q", heading.Text)
	}

	paragraph := blocks[1]
	if paragraph.Type != models.BlockParagraph {
		t.Errorf("block 1 type = %s, want paragraph", paragraph.Type)
	}
	if !strings.Contains(paragraph.Text, "**Geiranger**") {
		t.Errorf("inline markup should survive as markdown: %q", paragraph.Text)
	}

	unordered := blocks[2]
	if unordered.Type != models.BlockList || unordered.Ordered {
		t.Errorf("block 2 = %+v, want unordered list", unordered)
	}
	if len(unordered.Items) != 2 || unordered.Items[0] != "Pack layers" {
		t.Errorf("unordered items = %v", unordered.Items)
	}

	ordered := blocks[3]
	if ordered.Type != models.BlockList || !ordered.Ordered {
		t.Errorf("block 3 = %+v, want ordered list", ordered)
	}

	quote := blocks[4]
	if quote.Type != models.BlockQuote {
		t.Errorf("block 4 type = %s, want quote", quote.Type)
	}
	if !strings.Contains(quote.Text, "best views") {
		t.Errorf("quote text = %q", quote.Text)
	}
}

func TestToBlocksHeadingLevels(t *testing.T) {
	converter := NewConverter()

	blocks, err := converter.ToBlocks("<h1>One</h1><h3>Three</h3><h6>Six</h6>")
	if err != nil {
		t.Fatalf("ToBlocks failed: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}

	for i, want := range []int{1, 3, 6} {
		if blocks[i].Level != want {
			t.Errorf("block %d level = %d, want %d", i, blocks[i].Level, want)
		}
	}
}

func TestToBlocksSkipsEmptyElements(t *testing.T) {
	converter := NewConverter()

	blocks, err := converter.ToBlocks("<p>  </p><p>kept</p><ul></ul><h2></h2>")
	if err != nil {
		t.Fatalf("ToBlocks failed: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected only the non-empty paragraph, got %+v", blocks)
	}
	if blocks[0].Text != "kept" {
		t.Errorf("text = %q", blocks[0].Text)
	}
}

func TestToBlocksFallbackParagraph(t *testing.T) {
	converter := NewConverter()

	// Nothing classifiable, but the fragment still carries text.
	blocks, err := converter.ToBlocks("<div><span>loose text in a div</span></div>")
	if err != nil {
		t.Fatalf("ToBlocks failed: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected a single fallback block, got %+v", blocks)
	}
	if blocks[0].Type != models.BlockParagraph {
		t.Errorf("fallback type = %s, want paragraph", blocks[0].Type)
	}
	if blocks[0].Text != "loose text in a div" {
		t.Errorf("fallback text = %q", blocks[0].Text)
	}
}

func TestToBlocksEmptyInput(t *testing.T) {
	converter := NewConverter()

	blocks, err := converter.ToBlocks("")
	if err != nil {
		t.Fatalf("ToBlocks failed: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("empty input should yield no blocks, got %+v", blocks)
	}
}

func TestToBlocksPreservesLinks(t *testing.T) {
	converter := NewConverter()

	blocks, err := converter.ToBlocks(`<p>See the <a href="https://example.com/itinerary">full itinerary</a> here.</p>`)
	if err != nil {
		t.Fatalf("ToBlocks failed: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if !strings.Contains(blocks[0].Text, "[full itinerary](https://example.com/itinerary)") {
		t.Errorf("link not preserved as markdown: %q", blocks[0].Text)
	}
}
