// Package fetch materializes a resource's files onto local storage from
// its location descriptor: git repositories are shallow-cloned, archives
// are downloaded and extracted in place, flat files are downloaded as-is.
package fetch

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-resty/resty/v2"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/model"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
	"github.com/FocuswithJustin/CedarPress/internal/validation"
)

// Config controls network behavior for provisioning.
type Config struct {
	Timeout    time.Duration
	RetryCount int
}

// DefaultConfig returns the provisioning defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:    300 * time.Second,
		RetryCount: 2,
	}
}

// Result is what provisioning produced: the directory discovery should
// run against and, for downloaded artifacts, a content digest.
type Result struct {
	LocalRoot string
	Digest    string // blake3 hex of the downloaded artifact, empty for git
}

// Provisioner fetches remote resources into local directories.
type Provisioner struct {
	client *resty.Client
}

// NewProvisioner creates a Provisioner with the given network config.
func NewProvisioner(cfg Config) *Provisioner {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount)
	return &Provisioner{client: client}
}

// DirFor returns the provisioning directory for a request. Directories
// are namespaced by language and type, so distinct languages never share
// one.
func DirFor(workingDir string, req model.ResourceRequest) string {
	return filepath.Join(workingDir, req.Lang+"_"+req.Type)
}

// Provision materializes the described resource under targetDir and
// returns the local root for discovery. Creating targetDir is idempotent.
// For git descriptors the returned root is the nested clone directory,
// which callers must use for all subsequent discovery.
func (p *Provisioner) Provision(ctx context.Context, desc *model.LocationDescriptor, targetDir string) (*Result, error) {
	if desc == nil {
		return nil, errors.NewNotFound("location descriptor")
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, errors.NewIO("mkdir", targetDir, err)
	}

	switch desc.Kind {
	case model.KindGit:
		return p.provisionGit(ctx, desc, targetDir)
	case model.KindZip:
		return p.provisionZip(ctx, desc, targetDir)
	case model.KindFlat:
		return p.provisionFlat(ctx, desc, targetDir)
	default:
		return nil, errors.Wrapf(errors.ErrFetch, "unknown storage kind %q", desc.Kind)
	}
}

func (p *Provisioner) provisionGit(ctx context.Context, desc *model.LocationDescriptor, targetDir string) (*Result, error) {
	dir := filepath.Join(targetDir, strings.TrimSuffix(urlBase(desc.URL, "repository"), ".git"))

	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          desc.URL,
		Depth:        1,
		SingleBranch: true,
	})
	switch {
	case err == nil:
		logging.FetchEvent("clone", desc.URL, "dir", dir)
	case errors.Is(err, git.ErrRepositoryAlreadyExists):
		logging.FetchEvent("clone_reused", desc.URL, "dir", dir)
	default:
		return nil, errors.NewFetch("clone", desc.URL, err)
	}

	return &Result{LocalRoot: withSubpath(dir, desc.Subpath)}, nil
}

func (p *Provisioner) provisionZip(ctx context.Context, desc *model.LocationDescriptor, targetDir string) (*Result, error) {
	archivePath := filepath.Join(targetDir, urlBase(desc.URL, "resource.zip"))
	if err := p.download(ctx, desc.URL, archivePath); err != nil {
		return nil, err
	}
	if err := validateArchive(archivePath); err != nil {
		return nil, errors.NewFetch("validate", desc.URL, err)
	}

	digest, err := fileDigest(archivePath)
	if err != nil {
		return nil, err
	}

	if err := Extract(archivePath, targetDir); err != nil {
		return nil, errors.NewFetch("extract", desc.URL, err)
	}
	if err := os.Remove(archivePath); err != nil {
		return nil, errors.NewIO("remove", archivePath, err)
	}
	logging.FetchEvent("extract", desc.URL, "dir", targetDir, "digest", digest)

	return &Result{LocalRoot: withSubpath(targetDir, desc.Subpath), Digest: digest}, nil
}

func (p *Provisioner) provisionFlat(ctx context.Context, desc *model.LocationDescriptor, targetDir string) (*Result, error) {
	dest := filepath.Join(targetDir, urlBase(desc.URL, "resource.txt"))
	if err := p.download(ctx, desc.URL, dest); err != nil {
		return nil, err
	}

	digest, err := fileDigest(dest)
	if err != nil {
		return nil, err
	}
	logging.FetchEvent("download", desc.URL, "file", dest, "digest", digest)

	return &Result{LocalRoot: withSubpath(targetDir, desc.Subpath), Digest: digest}, nil
}

func (p *Provisioner) download(ctx context.Context, rawURL, dest string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetOutput(dest).
		Get(rawURL)
	if err != nil {
		return errors.NewFetch("download", rawURL, err)
	}
	if resp.IsError() {
		return errors.NewFetch("download", rawURL, fmt.Errorf("unexpected status %s", resp.Status()))
	}
	if info, statErr := os.Stat(dest); statErr == nil && info.Size() > validation.MaxArtifactSize {
		os.Remove(dest)
		return errors.NewFetch("download", rawURL, fmt.Errorf("artifact exceeds %d bytes", int64(validation.MaxArtifactSize)))
	}
	return nil
}

func withSubpath(root, subpath string) string {
	if subpath == "" {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(subpath))
}

// urlBase extracts the final path element of a URL for local file naming.
// The element is sanitized before it touches the filesystem since path.Base
// can yield hostile names like "..".
func urlBase(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return fallback
	}
	return validation.SafeLocalName(base, fallback)
}

// validateArchive confirms the downloaded artifact's magic bytes match
// its extension before the extractor touches it. Servers sometimes
// answer a download URL with an error page behind a 200.
func validateArchive(archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = validation.ValidateArtifact(f, filepath.Base(archivePath))
	return err
}

func fileDigest(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", errors.NewIO("open", p, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.NewIO("read", p, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
