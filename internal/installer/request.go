package installer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/modi-labs/modi/internal/manifest"
)

// Mode selects the install path for a request.
type Mode int

const (
	ModePrimary Mode = iota
	ModeFallbackBuild
)

// forceBuildPrefix on a package argument forces the source-build path.
const forceBuildPrefix = "@"

// ErrInvalidRequest is returned for package names that fail validation.
var ErrInvalidRequest = errors.New("invalid package request")

// Request asks for one package.
type Request struct {
	Name     string `validate:"required,pkgname"`
	Explicit bool
	Mode     Mode
}

// pkgNamePattern accepts a distribution name with optional extras and
// version specifiers, as pip takes them ("requests[socks]>=2.31").
var pkgNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-\[\],<>=!~]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("pkgname", func(fl validator.FieldLevel) bool {
		return pkgNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks the request's fields.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidRequest, r.Name, err)
	}
	return nil
}

// ParseRequests turns command-line package arguments into explicit requests.
// A leading "@" forces the source-build path for that package.
func ParseRequests(args []string) ([]Request, error) {
	reqs := make([]Request, 0, len(args))
	for _, arg := range args {
		req := Request{Name: strings.TrimSpace(arg), Explicit: true}
		if name, ok := strings.CutPrefix(req.Name, forceBuildPrefix); ok {
			req.Name = name
			req.Mode = ModeFallbackBuild
		}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Package returns the distribution name without extras or version specifiers.
func (r Request) Package() string {
	return manifest.RequirementName(r.Name)
}

// ExplicitNames returns the distribution names of the explicit requests.
func ExplicitNames(reqs []Request) []string {
	var names []string
	for _, r := range reqs {
		if r.Explicit {
			names = append(names, r.Package())
		}
	}
	return names
}
