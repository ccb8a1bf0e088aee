package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/gubarz/acecode/internal/parser"
)

// DefaultIncludeCacheSize bounds the number of downloaded headers kept in memory
const DefaultIncludeCacheSize = 128

// IncludeFetcher inlines `#include "https://..."` directives, since the
// compile endpoint cannot download remote headers itself
type IncludeFetcher struct {
	http  *http.Client
	cache *lru.Cache[string, string]
}

// NewIncludeFetcher creates a fetcher caching up to size files
func NewIncludeFetcher(client *http.Client, size int) *IncludeFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if size <= 0 {
		size = DefaultIncludeCacheSize
	}
	cache, _ := lru.New[string, string](size)
	return &IncludeFetcher{http: client, cache: cache}
}

// remoteInclude returns the URL of a remote include directive
func remoteInclude(line string) (string, bool) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))
	if !strings.HasPrefix(trimmed, "include") {
		return "", false
	}
	path, ok := parser.IncludePath(line)
	if !ok || !strings.Contains(path, "://") {
		return "", false
	}
	return path, true
}

// Expand replaces every remote include line by the downloaded file, wrapped in
// `// download[...]::begin` and `// download[...]::end` comments
func (f *IncludeFetcher) Expand(ctx context.Context, code string) (string, error) {
	lines := strings.Split(code, "\n")

	urls := make(map[int]string)
	for i, l := range lines {
		if uri, ok := remoteInclude(l); ok {
			urls[i] = uri
		}
	}
	if len(urls) == 0 {
		return code, nil
	}

	var mu sync.Mutex
	contents := make(map[int]string, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	for i, uri := range urls {
		g.Go(func() error {
			content, err := f.Get(ctx, uri)
			if err != nil {
				return err
			}
			mu.Lock()
			contents[i] = content
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	for i, content := range contents {
		directive := strings.TrimSpace(lines[i])
		lines[i] = fmt.Sprintf("// download[%s]::begin\n%s\n// download[%s]::end", directive, content, directive)
	}
	return strings.Join(lines, "\n"), nil
}

// Get returns the content at uri, downloading it on first use
func (f *IncludeFetcher) Get(ctx context.Context, uri string) (string, error) {
	if content, ok := f.cache.Get(uri); ok {
		return content, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("remote include %s: %w", uri, err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote include %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remote include %s: unexpected status %s", uri, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("remote include %s: %w", uri, err)
	}

	content := string(data)
	f.cache.Add(uri, content)
	return content, nil
}

// Cached reports whether uri is already downloaded
func (f *IncludeFetcher) Cached(uri string) bool {
	return f.cache.Contains(uri)
}
