package fetch

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// manifestFilename is the resolver's on-disk cache of dependency source ->
// local checkout path, kept alongside the checkouts themselves so a second
// invocation of the same build doesn't re-clone anything it already has.
const manifestFilename = "qgn_deps.json"

// Resolver maps a [dependencies] source string to the local directory
// holding its checkout, persisting that map under cacheDir across runs.
type Resolver struct {
	cacheDir string
	paths    map[string]string // source string -> local path
}

func OpenResolver(cacheDir string) (*Resolver, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, err
	}
	r := &Resolver{cacheDir: cacheDir, paths: make(map[string]string)}

	f, err := os.Open(filepath.Join(cacheDir, manifestFilename))
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := loadManifest(f, &r.paths); err != nil {
		return nil, err
	}
	return r, nil
}

func loadManifest(rd io.Reader, out *map[string]string) error {
	return json.NewDecoder(bufio.NewReader(rd)).Decode(out)
}

func (r *Resolver) save() error {
	f, err := os.Create(filepath.Join(r.cacheDir, manifestFilename))
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	defer bw.Flush()

	enc := json.NewEncoder(bw)
	enc.SetIndent("", "  ")
	return enc.Encode(r.paths)
}

// Resolve returns the local checkout path for a dependency named depName
// declared with source spec, fetching it into the resolver's cache the
// first time it is seen. Subsequent calls for the same spec, even across
// process runs, reuse the cached checkout.
func (r *Resolver) Resolve(depName, spec string) (string, error) {
	if path, ok := r.paths[spec]; ok {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		// cached path vanished from disk; re-fetch below
	}

	dest := filepath.Join(r.cacheDir, depName)
	path, err := Dependency(spec, dest)
	if err != nil {
		return "", err
	}

	r.paths[spec] = path
	if err := r.save(); err != nil {
		return "", err
	}
	return path, nil
}
