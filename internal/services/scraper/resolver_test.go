package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

func testResolver() *Resolver {
	return NewResolver(testScraperConfig(), arbor.NewLogger())
}

func TestResolveDirectExternalHref(t *testing.T) {
	r := testResolver()
	card := &interfaces.JobCard{
		Title:   "Developer",
		Company: "Acme",
		Href:    "https://jobs.acme.com/apply/42",
	}

	result, err := r.Resolve(context.Background(), nil, "https://www.eluta.ca/search?q=developer", card, NewElutaAdapter(14))
	require.NoError(t, err)
	assert.Equal(t, "https://jobs.acme.com/apply/42", result.URL)
	assert.Equal(t, "href", result.Via)
	assert.False(t, result.SelfLink)
}

func TestResolveRelativeExternalHref(t *testing.T) {
	r := testResolver()
	card := &interfaces.JobCard{
		Title: "Developer",
		Href:  "/apply/42",
	}

	// Relative against an employer page: still external after resolution.
	result, err := r.Resolve(context.Background(), nil, "https://jobs.acme.com/listing", card, NewElutaAdapter(14))
	require.NoError(t, err)
	assert.Equal(t, "https://jobs.acme.com/apply/42", result.URL)
	assert.Equal(t, "href", result.Via)
}

func TestResolveUnwrapsRedirectWrapper(t *testing.T) {
	r := testResolver()

	tests := []struct {
		name string
		href string
		want string
	}{
		{
			"indeed rc/clk url param",
			"/rc/clk?jk=abc123&url=https%3A%2F%2Fjobs.acme.com%2F42",
			"https://jobs.acme.com/42",
		},
		{
			"eluta destination param",
			"https://www.eluta.ca/go?dest=https%3A%2F%2Fcareers.globex.com%2Fjob%2F7",
			"https://careers.globex.com/job/7",
		},
		{
			"plain u param",
			"https://www.eluta.ca/out?u=https://jobs.acme.com/99",
			"https://jobs.acme.com/99",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := &interfaces.JobCard{Title: "Developer", Href: tt.href}
			result, err := r.Resolve(context.Background(), nil, "https://ca.indeed.com/jobs?q=developer", card, NewIndeedAdapter(14))
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.URL)
			assert.Equal(t, "redirect", result.Via)
		})
	}
}

func TestResolveRejectsSearchSelfLink(t *testing.T) {
	r := testResolver()
	card := &interfaces.JobCard{
		Title: "Developer",
		Href:  "/search?q=python+developer&pg=2",
	}

	result, err := r.Resolve(context.Background(), nil, "https://www.eluta.ca/search?q=python+developer", card, NewElutaAdapter(14))
	require.NoError(t, err)
	assert.True(t, result.SelfLink)
	assert.Empty(t, result.URL)
}

func TestResolveSkipsJavascriptHref(t *testing.T) {
	r := testResolver()
	card := &interfaces.JobCard{
		Title: "Developer",
		Href:  "javascript:void(0)",
	}

	// No usable href and no click selector: empty result, no error.
	result, err := r.Resolve(context.Background(), nil, "https://www.eluta.ca/search?q=developer", card, NewElutaAdapter(14))
	require.NoError(t, err)
	assert.Empty(t, result.URL)
	assert.False(t, result.SelfLink)
	assert.False(t, result.TimedOut)
}

func TestResolveFragmentOnlyHrefNotSelfLink(t *testing.T) {
	r := testResolver()
	card := &interfaces.JobCard{Title: "Developer", Company: "Acme", Href: "#!"}

	// A "#!" pseudo-href must not absolutize against the search page and
	// get misread as a self-link; without a click selector it resolves
	// empty instead.
	result, err := r.Resolve(context.Background(), nil, "https://www.eluta.ca/search?q=python+developer&posted=14", card, NewElutaAdapter(14))
	require.NoError(t, err)
	assert.False(t, result.SelfLink)
	assert.Empty(t, result.URL)
	assert.Empty(t, result.Via)
}

func TestFragmentOnly(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"#!", true},
		{"#", true},
		{"#apply", true},
		{"/job/42", false},
		{"https://jobs.acme.com/1", false},
		{"?q=x", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fragmentOnly(tt.href), tt.href)
	}
}

func TestResolveCancelledContext(t *testing.T) {
	r := testResolver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	card := &interfaces.JobCard{Title: "Developer", Href: "https://jobs.acme.com/1"}
	_, err := r.Resolve(ctx, nil, "https://www.eluta.ca/search", card, NewElutaAdapter(14))
	require.Error(t, err)
	assert.Equal(t, common.KindCancelled, common.KindOf(err))
}

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			"url param",
			"https://ca.indeed.com/rc/clk?url=https%3A%2F%2Fjobs.acme.com%2F1",
			"https://jobs.acme.com/1",
		},
		{
			"no redirect param",
			"https://www.eluta.ca/search?q=developer&pg=2",
			"",
		},
		{
			"redirect param pointing back at a listing host",
			"https://www.eluta.ca/go?url=https%3A%2F%2Fca.indeed.com%2Fviewjob%3Fjk%3Dabc",
			"",
		},
		{
			"non-url param value",
			"https://www.eluta.ca/go?dest=not-a-url",
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unwrapRedirect(tt.url))
		})
	}
}
