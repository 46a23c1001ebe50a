package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v65/github"
	"golang.org/x/oauth2"

	"github.com/chis/imagesmith/internal/logging"
)

const containerPackageType = "container"

// PackagesClient manages tags on ghcr.io through the GitHub Packages API.
// A ghcr tag lives on a package version whose name is the image digest.
type PackagesClient struct {
	baseURL string
	log     *logging.Logger
}

// NewPackagesClient creates a client for api.github.com.
func NewPackagesClient(log *logging.Logger) *PackagesClient {
	return &PackagesClient{log: logging.OrDefault(log).Named("packages")}
}

// WithBaseURL points the client at another API root (GitHub Enterprise, tests).
func (p *PackagesClient) WithBaseURL(base string) *PackagesClient {
	p.baseURL = base
	return p
}

func (p *PackagesClient) client(ctx context.Context, token string) (*github.Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, tokenSource)
	httpClient.Timeout = DefaultHTTPTimeout

	gh := github.NewClient(httpClient)
	if p.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(p.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", p.baseURL, err)
		}
		gh.BaseURL = u
	}
	return gh, nil
}

// packageScope knows whether owner is an organization or a user account.
type packageScope struct {
	gh    *github.Client
	owner string
	org   bool
}

func (s packageScope) listVersions(ctx context.Context, pkg string, opts *github.PackageListOptions) ([]*github.PackageVersion, *github.Response, error) {
	if s.org {
		return s.gh.Organizations.PackageGetAllVersions(ctx, s.owner, containerPackageType, pkg, opts)
	}
	return s.gh.Users.PackageGetAllVersions(ctx, s.owner, containerPackageType, pkg, opts)
}

func (s packageScope) deleteVersion(ctx context.Context, pkg string, id int64) error {
	var err error
	if s.org {
		_, err = s.gh.Organizations.PackageDeleteVersion(ctx, s.owner, containerPackageType, pkg, id)
	} else {
		_, err = s.gh.Users.PackageDeleteVersion(ctx, s.owner, containerPackageType, pkg, id)
	}
	return err
}

// versions fetches every version of the package, trying the organization
// endpoint first and the user endpoint second.
func (p *PackagesClient) versions(ctx context.Context, gh *github.Client, owner, pkg string) ([]*github.PackageVersion, packageScope, error) {
	var lastErr error
	for _, org := range []bool{true, false} {
		scope := packageScope{gh: gh, owner: owner, org: org}
		all, err := p.collect(ctx, scope, pkg)
		if err == nil {
			return all, scope, nil
		}
		if !isNotFound(err) {
			return nil, scope, err
		}
		lastErr = err
	}
	return nil, packageScope{}, lastErr
}

func (p *PackagesClient) collect(ctx context.Context, scope packageScope, pkg string) ([]*github.PackageVersion, error) {
	opts := &github.PackageListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var all []*github.PackageVersion
	for {
		page, resp, err := scope.listVersions(ctx, pkg, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// ListTags returns every tag of owner/namespace, newest version first.
func (p *PackagesClient) ListTags(ctx context.Context, owner, namespace, token string) ([]string, error) {
	namespace = packageName(namespace)
	gh, err := p.client(ctx, token)
	if err != nil {
		return nil, err
	}

	versions, _, err := p.versions(ctx, gh, owner, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s/%s: %w", owner, namespace, err)
	}

	seen := make(map[string]bool)
	var tags []string
	for _, v := range versions {
		for _, tag := range v.GetMetadata().GetContainer().Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags, nil
}

// DeleteTag deletes the package version carrying tag. When no version carries
// the tag, or the version has no digest, nothing happens and nil is returned.
// Deleting the version removes every tag that points at the same digest.
func (p *PackagesClient) DeleteTag(ctx context.Context, owner, namespace, tag, token string) error {
	namespace = packageName(namespace)
	gh, err := p.client(ctx, token)
	if err != nil {
		return err
	}

	versions, scope, err := p.versions(ctx, gh, owner, namespace)
	if err != nil {
		if isNotFound(err) {
			p.log.DebugContext(ctx, "Package %s/%s not found, nothing to delete", owner, namespace)
			return nil
		}
		return fmt.Errorf("failed to list versions of %s/%s: %w", owner, namespace, err)
	}

	version := findTaggedVersion(versions, tag)
	digest := version.GetName()
	if version == nil || digest == "" {
		p.log.DebugContext(ctx, "No digest for %s/%s:%s, nothing to delete", owner, namespace, tag)
		return nil
	}

	p.log.InfoContext(ctx, "Deleting %s/%s:%s (%s)", owner, namespace, tag, digest)
	if err := scope.deleteVersion(ctx, namespace, version.GetID()); err != nil {
		return fmt.Errorf("failed to delete %s/%s@%s: %w", owner, namespace, digest, err)
	}
	return nil
}

// packageName is the package a namespace is pushed as. Repositories are
// lower-cased when tagged, so the package name is too.
func packageName(namespace string) string {
	return strings.ToLower(strings.Trim(namespace, "/"))
}

func findTaggedVersion(versions []*github.PackageVersion, tag string) *github.PackageVersion {
	for _, v := range versions {
		for _, t := range v.GetMetadata().GetContainer().Tags {
			if t == tag {
				return v
			}
		}
	}
	return nil
}
