package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-playground/assert/v2"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>USITC News Releases</title>
<item>
<title>USITC Announces Section 301 Rate Modification</title>
<description><![CDATA[<p>The Commission announced a <b>25%</b> additional rate on HTS 8542.31.00.</p>]]></description>
<link>https://example.gov/news/301-modification</link>
<guid>https://example.gov/news/301-modification</guid>
<pubDate>Thu, 06 Nov 2025 09:00:00 GMT</pubDate>
</item>
<item>
<title>Commission Schedules Hearing</title>
<description>Routine administrative notice.</description>
<link>https://example.gov/news/hearing</link>
</item>
</channel>
</rss>`

func TestFetchParsesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	fetcher := NewRSSFetcher(srv.Client())
	items, err := fetcher.Fetch(context.Background(), srv.URL)

	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(items))

	first := items[0]
	assert.Equal(t, "USITC Announces Section 301 Rate Modification", first.Title)
	assert.Equal(t, "The Commission announced a 25% additional rate on HTS 8542.31.00.", first.Description)
	assert.Equal(t, "https://example.gov/news/301-modification", first.URL)
	assert.Equal(t, 16, len(first.ExternalID))
	assert.Equal(t, 2025, first.PublishedAt.Year())
	assert.Equal(t, time.November, first.PublishedAt.Month())
}

func TestFetchStableExternalID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	fetcher := NewRSSFetcher(srv.Client())

	first, err := fetcher.Fetch(context.Background(), srv.URL)
	assert.Equal(t, nil, err)
	second, err := fetcher.Fetch(context.Background(), srv.URL)
	assert.Equal(t, nil, err)

	assert.Equal(t, first[0].ExternalID, second[0].ExternalID)
	assert.NotEqual(t, first[0].ExternalID, first[1].ExternalID)
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	fetcher := NewRSSFetcher(srv.Client())
	_, err := fetcher.Fetch(context.Background(), srv.URL)

	assert.NotEqual(t, nil, err)
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text unchanged",
			input: "Tariff rate increased to 25 percent.",
			want:  "Tariff rate increased to 25 percent.",
		},
		{
			name:  "strips tags",
			input: "<p>Rate <b>increased</b> to 25%.</p>",
			want:  "Rate increased to 25%.",
		},
		{
			name:  "collapses whitespace",
			input: "Rate\n\n  increased\t to 25%.",
			want:  "Rate increased to 25%.",
		},
		{
			name:  "drops script content",
			input: "<div>Notice</div><script>alert(1)</script>",
			want:  "Notice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanDescription(tt.input)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanDescriptionTruncatesOnRuneBoundary(t *testing.T) {
	// One ASCII byte shifts every two-byte accented rune off the even byte
	// offsets, so the length cap lands mid-rune. Gazette and DOF feeds are
	// full of this kind of text.
	long := "x" + strings.Repeat("é", 1200)

	got := CleanDescription(long)

	assert.Equal(t, utf8.ValidString(got), true)
	assert.Equal(t, len(got) <= maxDescriptionChars, true)
	assert.Equal(t, len(got), maxDescriptionChars-1)
	assert.Equal(t, strings.HasSuffix(got, "é"), true)
}
