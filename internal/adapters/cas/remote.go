package cas

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// Remote is a read-only HTTP artifact backend. It mirrors the local store
// layout: GET <base>/objects/<fp> for blobs and <base>/objects/<fp>.json for
// metadata.
type Remote struct {
	base   string
	client *http.Client
}

// NewRemote creates a remote backend for the given base URL.
func NewRemote(baseURL string) *Remote {
	return &Remote{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

// FetchMeta retrieves the artifact metadata for fp, or (nil, nil) if the
// remote does not have it.
func (r *Remote) FetchMeta(fp domain.Fingerprint) (*ports.Artifact, error) {
	resp, err := r.client.Get(r.objectURL(fp) + metaSuffix)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to query remote store")
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, zerr.With(zerr.New("unexpected remote store status"), "status", resp.Status)
	}

	var meta ports.Artifact
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, zerr.Wrap(err, "failed to decode remote metadata")
	}
	return &meta, nil
}

// FetchBlob streams the blob for fp into w.
func (r *Remote) FetchBlob(fp domain.Fingerprint, w io.Writer) error {
	resp, err := r.client.Get(r.objectURL(fp))
	if err != nil {
		return zerr.Wrap(err, "failed to download remote blob")
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	if resp.StatusCode != http.StatusOK {
		return zerr.With(zerr.New("unexpected remote store status"), "status", resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return zerr.Wrap(err, "failed to stream remote blob")
	}
	return nil
}

func (r *Remote) objectURL(fp domain.Fingerprint) string {
	return fmt.Sprintf("%s/%s/%s", r.base, objectsDir, fp)
}
