package icon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/leeforge/icons/entity"
	"github.com/leeforge/icons/media/storage"
)

// MaxSourceBytes caps how much of a source is read.
const MaxSourceBytes = 32 << 20

// Source supplies the raw bytes icons are derived from.
type Source interface {
	Load(ctx context.Context, blobs storage.BlobStore) ([]byte, error)
	String() string
}

type storedSource struct {
	file entity.StoredFile
}

// FromStoredFile reads a blob held by the blob store.
func FromStoredFile(f entity.StoredFile) Source {
	return storedSource{file: f}
}

func (s storedSource) Load(ctx context.Context, blobs storage.BlobStore) ([]byte, error) {
	if blobs == nil {
		return nil, fmt.Errorf("no blob store for %s", s)
	}
	return blobs.Read(ctx, s.file.Owner, s.file.Filename)
}

func (s storedSource) String() string {
	return fmt.Sprintf("blob %d/%s", s.file.Owner, s.file.Filename)
}

type pathSource string

// FromPath reads a file from the local filesystem.
func FromPath(path string) Source {
	return pathSource(path)
}

func (p pathSource) Load(ctx context.Context, _ storage.BlobStore) ([]byte, error) {
	f, err := os.Open(string(p))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f)
}

func (p pathSource) String() string { return "path " + string(p) }

type urlSource struct {
	url    string
	client *http.Client
}

// FromURL fetches an http or https URL. A nil client uses http.DefaultClient.
func FromURL(url string, client *http.Client) Source {
	if client == nil {
		client = http.DefaultClient
	}
	return urlSource{url: url, client: client}
}

func (u urlSource) Load(ctx context.Context, _ storage.BlobStore) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", u.url, resp.StatusCode)
	}
	return readLimited(resp.Body)
}

func (u urlSource) String() string { return "url " + u.url }

type bytesSource []byte

// FromBytes uses data as is, typically an uploaded file.
func FromBytes(data []byte) Source {
	return bytesSource(data)
}

func (b bytesSource) Load(context.Context, storage.BlobStore) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty source")
	}
	return b, nil
}

func (b bytesSource) String() string { return fmt.Sprintf("upload (%d bytes)", len(b)) }

// FromReference picks FromURL for http(s) references and FromPath otherwise.
func FromReference(ref string) Source {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return FromURL(ref, nil)
	}
	return FromPath(ref)
}

// resolveSource prefers src and falls back to the entity's own content.
func resolveSource(e *entity.Entity, src Source) Source {
	if src != nil {
		return src
	}
	if e.HasOwnContent() {
		return FromStoredFile(*e.Content)
	}
	return nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("source exceeds %d bytes", MaxSourceBytes)
	}
	return data, nil
}
