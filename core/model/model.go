// Package model defines the request, key, and location types shared by the
// document pipeline.
package model

import (
	"regexp"
	"strings"

	"github.com/FocuswithJustin/CedarPress/core/books"
	"github.com/FocuswithJustin/CedarPress/core/errors"
)

// StorageKind describes how a resource's files are stored remotely.
type StorageKind string

const (
	// KindGit is a cloneable git repository.
	KindGit StorageKind = "git"
	// KindZip is a downloadable zip archive.
	KindZip StorageKind = "zip"
	// KindFlat is a single downloadable file.
	KindFlat StorageKind = "flat"
)

// AssemblyStrategy selects how parsed resources are combined into one
// document.
type AssemblyStrategy string

const (
	// StrategyBookOrder concatenates whole rendered resources in request
	// order.
	StrategyBookOrder AssemblyStrategy = "book_order"
	// StrategyVerseInterleave merges scripture with helps chapter by
	// chapter and verse by verse.
	StrategyVerseInterleave AssemblyStrategy = "verse_interleave"
)

// ParseStrategy validates a strategy name. The empty string selects
// StrategyBookOrder.
func ParseStrategy(s string) (AssemblyStrategy, error) {
	switch AssemblyStrategy(s) {
	case "":
		return StrategyBookOrder, nil
	case StrategyBookOrder:
		return StrategyBookOrder, nil
	case StrategyVerseInterleave:
		return StrategyVerseInterleave, nil
	default:
		return "", errors.NewMalformedRequest("assembly_strategy", s)
	}
}

// langPattern matches simple IETF-style language subtags, including
// private extensions such as "es-419".
var langPattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]{2,8})*$`)

// typePattern matches resource type slugs such as "ulb", "tn", or "tn-wa".
var typePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// ResourceRequest identifies one resource to include in a document.
type ResourceRequest struct {
	Lang string `json:"lang"`
	Type string `json:"resource_type"`
	Code string `json:"resource_code"`
}

// Spec returns the request in "lang/type/code" form for logs and errors.
func (r ResourceRequest) Spec() string {
	return r.Lang + "/" + r.Type + "/" + r.Code
}

// Key returns the request's contribution to a document key.
func (r ResourceRequest) Key() string {
	return strings.Join([]string{r.Lang, r.Type, r.Code}, "-")
}

// Validate checks the request fields before any network activity happens.
func (r ResourceRequest) Validate() error {
	if r.Lang == "" || !langPattern.MatchString(r.Lang) {
		return errors.NewMalformedRequest("lang", r.Lang)
	}
	if r.Type == "" || !typePattern.MatchString(r.Type) {
		return errors.NewMalformedRequest("resource_type", r.Type)
	}
	if !books.IsValid(r.Code) {
		return errors.NewMalformedRequest("resource_code", r.Code)
	}
	return nil
}

// LocationDescriptor tells the provisioner where a resource lives and how
// to retrieve it. A nil descriptor means the resource was not found.
type LocationDescriptor struct {
	Kind    StorageKind `json:"kind"`
	URL     string      `json:"url"`
	Subpath string      `json:"subpath,omitempty"`
}

// DocumentRequest is a full composite document request.
type DocumentRequest struct {
	Resources []ResourceRequest `json:"resource_requests"`
	Strategy  AssemblyStrategy  `json:"assembly_strategy,omitempty"`
	PDF       bool              `json:"pdf,omitempty"`
}

// Validate checks every resource request and the strategy. Validation
// failures are fatal; nothing is fetched for an invalid request.
func (d DocumentRequest) Validate() error {
	if len(d.Resources) == 0 {
		return errors.NewMalformedRequest("resource_requests", "empty")
	}
	for _, r := range d.Resources {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	if _, err := ParseStrategy(string(d.Strategy)); err != nil {
		return err
	}
	return nil
}

// Key derives the document key: per-resource lang-type-code triples joined
// with underscores, in request order. The key names output files, so two
// requests for the same resources in the same order share one key.
func (d DocumentRequest) Key() string {
	parts := make([]string, 0, len(d.Resources))
	for _, r := range d.Resources {
		parts = append(parts, r.Key())
	}
	return strings.Join(parts, "_")
}

// FinishedDocument reports the outcome of one generator run: where the
// outputs landed and which diagnostics accumulated along the way.
type FinishedDocument struct {
	Key      string            `json:"key"`
	HTMLPath string            `json:"html_path"`
	PDFPath  string            `json:"pdf_path,omitempty"`
	Unfound  []ResourceRequest `json:"unfound,omitempty"`
	BadLinks []string          `json:"bad_links,omitempty"`
}
