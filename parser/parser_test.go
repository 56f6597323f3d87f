package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-themezer/models"
)

const testBase = "https://themezer.test"

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func card(href, title, author, downloads string) string {
	var b strings.Builder
	b.WriteString(`<a href="` + href + `"><div class="card">`)
	if title != "" {
		b.WriteString(`<span class="font-bold">` + title + `</span>`)
	}
	if author != "" {
		b.WriteString(`<div class="avatar"></div><div>` + author + `</div>`)
	}
	if downloads != "" {
		b.WriteString(`<span><i class="i-lucide-download"></i> ` + downloads + `</span>`)
	}
	b.WriteString(`</div></a>`)
	return b.String()
}

func TestExtractListings(t *testing.T) {
	html := "<html><body>" +
		card("/switch/packs/abc/overview", "Dark Neon", "alice", "1204 downloads") +
		card("/switch/packs/abc", "Dark Neon Duplicate", "alice", "3") +
		card("/switch/packs/", "No Id", "bob", "1") +
		card("/switch/packs/def", "", "bob", "1") +
		card("https://themezer.test/switch/packs/ghi?ref=home", "  Pastel  ", "", "") +
		"</body></html>"

	packs := ExtractListings(mustDoc(t, html), 2, testBase)
	if len(packs) != 2 {
		t.Fatalf("packs = %d, want 2: %+v", len(packs), packs)
	}

	want := []models.PackStub{
		{ID: "abc", Title: "Dark Neon", Author: "alice", Downloads: 1204, URL: testBase + "/switch/packs/abc/overview", Page: 2},
		{ID: "ghi", Title: "Pastel", Author: "Unknown", Downloads: 0, URL: "https://themezer.test/switch/packs/ghi?ref=home", Page: 2},
	}
	for i := range want {
		if packs[i] != want[i] {
			t.Errorf("pack[%d] = %+v, want %+v", i, packs[i], want[i])
		}
	}
}

func TestExtractListingsDedupWithinPage(t *testing.T) {
	html := card("/switch/packs/same", "First", "a", "5") + card("/switch/packs/same/", "Second", "b", "6")
	packs := ExtractListings(mustDoc(t, html), 1, testBase)
	if len(packs) != 1 {
		t.Fatalf("packs = %d, want 1", len(packs))
	}
	if packs[0].Title != "First" {
		t.Fatalf("kept %q, want the first anchor", packs[0].Title)
	}
}

func TestExtractDetailLinks(t *testing.T) {
	tests := []struct {
		name string
		html string
		want models.PackDetails
	}{
		{
			name: "both links",
			html: `<head><meta property="og:image" content="https://cdn.test/p.webp"></head><body><a href="/api/packs/1/download">Get</a></body>`,
			want: models.PackDetails{Preview: "https://cdn.test/p.webp", DownloadURL: testBase + "/api/packs/1/download"},
		},
		{
			name: "relative download without slash",
			html: `<a href="packs/1/download">Get</a>`,
			want: models.PackDetails{DownloadURL: testBase + "/packs/1/download"},
		},
		{
			name: "nothing",
			html: `<p>empty</p>`,
			want: models.PackDetails{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractDetailLinks(mustDoc(t, tt.html), testBase)
			if got != tt.want {
				t.Fatalf("ExtractDetailLinks() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHasMorePages(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{name: "no pagination", html: `<p>x</p>`, want: false},
		{name: "single control", html: `<button page="2">2</button>`, want: false},
		{name: "buttons", html: `<button page="1">1</button><button page="2">2</button>`, want: true},
		{name: "links", html: `<a href="?page=2">2</a><a href="?page=3">3</a>`, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasMorePages(mustDoc(t, tt.html)); got != tt.want {
				t.Fatalf("HasMorePages() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "unsafe chars", input: "A:B/C*D", expected: "A_B_C_D"},
		{name: "whitespace runs", input: "Dark   Neon\tPack", expected: "Dark_Neon_Pack"},
		{name: "all unsafe", input: `<>:"/\|?*`, expected: "_________"},
		{name: "dot only", input: "..", expected: "__"},
		{name: "truncated", input: strings.Repeat("x", 80), expected: strings.Repeat("x", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTitle(tt.input); got != tt.expected {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeTitleStable(t *testing.T) {
	title := "A:B/C*D " + strings.Repeat("é", 60)
	first := SanitizeTitle(title)
	for i := 0; i < 10; i++ {
		if got := SanitizeTitle(title); got != first {
			t.Fatalf("SanitizeTitle not deterministic: %q vs %q", got, first)
		}
	}
	if strings.ContainsAny(first, `<>:"/\|?*`) {
		t.Fatalf("sanitized %q contains unsafe characters", first)
	}
	if n := len([]rune(first)); n > 50 {
		t.Fatalf("sanitized length = %d, want <= 50", n)
	}
}

func TestAssetExtension(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "https://themezer.test/packs/1/pack.nxtheme?token=abc", expected: ".nxtheme"},
		{input: "https://themezer.test/api/packs/1/download", expected: ".zip"},
		{input: "https://themezer.test", expected: ".zip"},
		{input: "/files/theme.zip#frag", expected: ".zip"},
		{input: "/files/theme.7z", expected: ".7z"},
	}
	for _, tt := range tests {
		if got := AssetExtension(tt.input); got != tt.expected {
			t.Errorf("AssetExtension(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPreviewExtension(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "https://cdn.test/a.png?w=10", expected: ".png"},
		{input: "https://cdn.test/a.webp", expected: ".webp"},
		{input: "https://cdn.test/a.jpeg", expected: ".jpg"},
		{input: "https://cdn.test/a", expected: ".jpg"},
	}
	for _, tt := range tests {
		if got := PreviewExtension(tt.input); got != tt.expected {
			t.Errorf("PreviewExtension(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestValidateStub(t *testing.T) {
	tests := []struct {
		name    string
		stub    *models.PackStub
		wantErr bool
	}{
		{name: "valid", stub: &models.PackStub{ID: "a", Title: "T", Page: 1}},
		{name: "nil", stub: nil, wantErr: true},
		{name: "missing id", stub: &models.PackStub{Title: "T", Page: 1}, wantErr: true},
		{name: "missing title", stub: &models.PackStub{ID: "a", Page: 1}, wantErr: true},
		{name: "bad page", stub: &models.PackStub{ID: "a", Title: "T"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStub(tt.stub)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStub() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
