package models

import (
	"time"
)

// Post is the normalized form of one WordPress post as the migration
// pipeline carries it between fetch, convert and import.
type Post struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Status        string     `json:"status"`
	Link          string     `json:"link"`
	HTML          string     `json:"html"`
	Excerpt       string     `json:"excerpt"`
	Categories    []int      `json:"categories"`
	Tags          []int      `json:"tags"`
	FeaturedMedia int        `json:"featured_media"`
	PublishedAt   *time.Time `json:"published_at"`
	ModifiedAt    *time.Time `json:"modified_at"`
}

// SizeVariant is one resized rendition of a media item. Variants are
// inventory-only: the CDN resizes from the original on demand, so they are
// never queued for download.
type SizeVariant struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"filesize"`
}

// MediaItem is the normalized form of one raw media record.
// DownloadURLs holds at most the single original-resolution URL.
type MediaItem struct {
	ID           int           `json:"id"`
	Title        string        `json:"title"`
	AltText      string        `json:"alt_text"`
	Caption      string        `json:"caption"`
	MimeType     string        `json:"mime_type"`
	FilePath     string        `json:"file_path"`
	SourceURL    string        `json:"source_url"`
	FileSize     int64         `json:"file_size"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	SizeVariants []SizeVariant `json:"image_sizes,omitempty"`
	DownloadURLs []string      `json:"download_urls"`
	UploadDate   *time.Time    `json:"upload_date"`
}

// DownloadJob is one unit of work for the bulk downloader, produced 1:1
// from inventory items with a non-empty DownloadURLs.
type DownloadJob struct {
	URL       string `json:"url"`
	LocalPath string `json:"local_path"`
	Size      int64  `json:"size"`
	MediaID   int    `json:"media_id"`
}

// ContentBlock is one structured block extracted from rendered post HTML.
type ContentBlock struct {
	Type    string   `json:"type"`
	Level   int      `json:"level,omitempty"`
	Text    string   `json:"text,omitempty"`
	Items   []string `json:"items,omitempty"`
	Ordered bool     `json:"ordered,omitempty"`
}

// Block classification types produced by the HTML converter.
const (
	BlockHeading   = "heading"
	BlockParagraph = "paragraph"
	BlockList      = "list"
	BlockQuote     = "quote"
)
