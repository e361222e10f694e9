package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	packageurl "github.com/package-url/packageurl-go"
)

// Release is the source distribution chosen for a package.
type Release struct {
	Name    string
	Version string
	URL     string
	SHA256  string
	PURL    string
}

type packageResponse struct {
	Info     infoBlock                `json:"info"`
	URLs     []releaseFile            `json:"urls"`
	Releases map[string][]releaseFile `json:"releases"`
}

type infoBlock struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type releaseFile struct {
	Digests       map[string]string `json:"digests"`
	URL           string            `json:"url"`
	Yanked        bool              `json:"yanked"`
	PackageType   string            `json:"packagetype"`
	PythonVersion string            `json:"python_version"`
}

// Lookup resolves the source distribution of name. The sdist of the current
// version is preferred; when that release has none, the highest semver
// release that carries one is used. With a cache configured, recent results
// are served from disk.
func (c *Client) Lookup(ctx context.Context, name string) (*Release, error) {
	if rel := c.cache.fresh(name); rel != nil {
		return rel, nil
	}

	rel, err := c.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		// A failed write only costs a lookup next time.
		_ = c.cache.save(rel)
	}
	return rel, nil
}

func (c *Client) lookup(ctx context.Context, name string) (*Release, error) {
	url := fmt.Sprintf("%s/pypi/%s/json", c.baseURL, name)

	resp, err := c.get(ctx, url, "application/json")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLookupFailed, name, err)
	}
	defer resp.Body.Close()

	var pkg packageResponse
	if err := json.NewDecoder(resp.Body).Decode(&pkg); err != nil {
		return nil, fmt.Errorf("%w: decoding response for %s: %w", ErrLookupFailed, name, err)
	}

	version, sdist := selectSource(pkg)
	if sdist == nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLookupFailed, name, ErrNoSourceDist)
	}

	return &Release{
		Name:    name,
		Version: version,
		URL:     sdist.URL,
		SHA256:  sdist.Digests["sha256"],
		PURL:    PURL(name, version),
	}, nil
}

// PURL returns the package URL identifier for a PyPI package version.
func PURL(name, version string) string {
	return packageurl.NewPackageURL(packageurl.TypePyPi, "", normalizeName(name), version, nil, "").ToString()
}

func selectSource(pkg packageResponse) (string, *releaseFile) {
	if f := sdistFile(pkg.URLs); f != nil {
		return pkg.Info.Version, f
	}
	if f := sdistFile(pkg.Releases[pkg.Info.Version]); f != nil {
		return pkg.Info.Version, f
	}

	type candidate struct {
		raw string
		v   *semver.Version
	}
	var candidates []candidate
	for raw := range pkg.Releases {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{raw: raw, v: v})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].v.GreaterThan(candidates[j].v)
	})

	for _, cand := range candidates {
		if f := sdistFile(pkg.Releases[cand.raw]); f != nil {
			return cand.raw, f
		}
	}
	return "", nil
}

func sdistFile(files []releaseFile) *releaseFile {
	for i, f := range files {
		if f.Yanked {
			continue
		}
		if f.PackageType == "sdist" && f.PythonVersion == "source" {
			return &files[i]
		}
	}
	return nil
}

func normalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, ".", "-")
	return name
}
