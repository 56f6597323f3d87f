// Package parser extracts pack listings and detail links from Themezer pages.
package parser

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-themezer/models"
)

const (
	packPathMarker = "/switch/packs/"
	maxDirNameLen  = 50
	defaultAuthor  = "Unknown"
	defaultAsset   = ".zip"
)

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace  = regexp.MustCompile(`\s+`)
	firstNumber = regexp.MustCompile(`\d+`)
)

// ExtractListings returns the packs linked from a listing page in document
// order. Anchors without an id or title are skipped, as are ids already seen
// on the same page.
func ExtractListings(doc *goquery.Document, page int, base string) []models.PackStub {
	packs := make([]models.PackStub, 0)
	seen := make(map[string]struct{})

	doc.Find(`a[href*="` + packPathMarker + `"]`).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}

		id := PackID(href)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		card := a.Find(".card")
		title := strings.TrimSpace(card.Find(".font-bold").First().Text())
		if title == "" {
			return
		}

		author := strings.TrimSpace(card.Find(".avatar + div").First().Text())
		if author == "" {
			author = defaultAuthor
		}

		packs = append(packs, models.PackStub{
			ID:        id,
			Title:     title,
			Author:    author,
			Downloads: models.DownloadCount(parseDownloads(card.Find(".i-lucide-download").Parent().Text())),
			URL:       Absolute(base, href),
			Page:      page,
		})
	})

	return packs
}

// ExtractDetailLinks finds the preview image and download link of a pack.
func ExtractDetailLinks(doc *goquery.Document, base string) models.PackDetails {
	var details models.PackDetails

	if preview, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		preview = strings.TrimSpace(preview)
		if preview != "" {
			details.Preview = Absolute(base, preview)
		}
	}
	if download, ok := doc.Find(`a[href*="/download"]`).First().Attr("href"); ok {
		download = strings.TrimSpace(download)
		if download != "" {
			details.DownloadURL = Absolute(base, download)
		}
	}

	return details
}

// HasMorePages reports whether pagination controls reference more than one page.
func HasMorePages(doc *goquery.Document) bool {
	return doc.Find(`button[page], a[href*="page="]`).Length() > 1
}

// PackID returns the path segment following /switch/packs/ in href.
func PackID(href string) string {
	idx := strings.Index(href, packPathMarker)
	if idx < 0 {
		return ""
	}
	rest := href[idx+len(packPathMarker):]
	if cut := strings.IndexAny(rest, "/?#"); cut >= 0 {
		rest = rest[:cut]
	}
	return rest
}

// Absolute joins a site-relative link onto base. Links that already carry a
// scheme are returned unchanged.
func Absolute(base, link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasPrefix(link, "/") {
		return base + link
	}
	return base + "/" + link
}

// SanitizeTitle turns a pack title into a directory name. The result never
// contains < > : " / \ | ? * or whitespace and is at most 50 characters.
// Distinct titles may collide.
func SanitizeTitle(title string) string {
	name := unsafeChars.ReplaceAllString(title, "_")
	name = whitespace.ReplaceAllString(name, "_")
	if utf8.RuneCountInString(name) > maxDirNameLen {
		name = string([]rune(name)[:maxDirNameLen])
	}
	if strings.Trim(name, ".") == "" {
		name = strings.Repeat("_", max(len(name), 1))
	}
	return name
}

// AssetExtension derives the theme file extension from its URL, falling back
// to .zip.
func AssetExtension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if cut := strings.IndexAny(rawURL, "?#"); cut >= 0 {
		p = rawURL[:cut]
	}
	if ext := path.Ext(p); ext != "" && ext != "." {
		return ext
	}
	return defaultAsset
}

// PreviewExtension picks the preview image extension from the URL.
func PreviewExtension(rawURL string) string {
	switch {
	case strings.Contains(rawURL, ".png"):
		return ".png"
	case strings.Contains(rawURL, ".webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}

// ValidateStub ensures the listing captured the required fields.
func ValidateStub(p *models.PackStub) error {
	if p == nil {
		return fmt.Errorf("pack is nil")
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("pack missing id")
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("pack missing title for %s", p.ID)
	}
	if p.Downloads < 0 {
		return fmt.Errorf("pack %s has negative download count", p.ID)
	}
	if p.Page < 1 {
		return fmt.Errorf("pack %s has invalid page %d", p.ID, p.Page)
	}
	return nil
}

func parseDownloads(text string) int {
	match := firstNumber.FindString(text)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}
