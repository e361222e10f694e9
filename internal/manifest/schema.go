package manifest

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/meta.schema.json
var metaSchemaJSON []byte

const metaSchemaURL = "meta.schema.json"

var loadMetaSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(metaSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("decoding metadata schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(metaSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("registering metadata schema: %w", err)
	}
	s, err := c.Compile(metaSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling metadata schema: %w", err)
	}
	return s, nil
})

var issuePrinter = message.NewPrinter(language.English)

// Issue is one schema violation in a metadata document.
type Issue struct {
	// Pointer is the JSON pointer of the offending value ("" for the root).
	Pointer string
	// Keyword is the schema keyword that failed ("required", "type", ...).
	Keyword string
	Message string
}

func (i Issue) String() string {
	if i.Pointer == "" {
		return i.Message
	}
	return i.Pointer + ": " + i.Message
}

// SchemaError lists every violation found in one document. It matches
// ErrInvalidMeta with errors.Is.
type SchemaError struct {
	Issues []Issue
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return ErrInvalidMeta.Error() + ": " + strings.Join(parts, "; ")
}

func (e *SchemaError) Unwrap() error { return ErrInvalidMeta }

// ValidateMeta checks raw metadata JSON against the embedded schema. It
// returns a *SchemaError for documents that parse but do not conform.
func ValidateMeta(data []byte) error {
	schema, err := loadMetaSchema()
	if err != nil {
		return err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: parsing JSON: %w", ErrInvalidMeta, err)
	}

	verr := schema.Validate(doc)
	if verr == nil {
		return nil
	}
	ve, ok := verr.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("validating metadata: %w", verr)
	}

	return &SchemaError{Issues: leafIssues(ve)}
}

// leafIssues flattens the validation tree into its leaves, dropping the
// wrapper keywords and duplicates, ordered by pointer.
func leafIssues(root *jsonschema.ValidationError) []Issue {
	seen := make(map[Issue]bool)
	var out []Issue

	var walk func(*jsonschema.ValidationError)
	walk = func(ve *jsonschema.ValidationError) {
		for _, c := range ve.Causes {
			walk(c)
		}
		if len(ve.Causes) > 0 || ve.ErrorKind == nil {
			return
		}

		var is Issue
		if len(ve.InstanceLocation) > 0 {
			is.Pointer = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		if kw := ve.ErrorKind.KeywordPath(); len(kw) > 0 {
			is.Keyword = kw[len(kw)-1]
		}
		if is.Keyword == "allOf" || is.Keyword == "$ref" {
			return
		}
		is.Message = ve.ErrorKind.LocalizedString(issuePrinter)

		if !seen[is] {
			seen[is] = true
			out = append(out, is)
		}
	}
	walk(root)

	if len(out) == 0 {
		return []Issue{{Message: root.Error()}}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pointer < out[j].Pointer })
	return out
}
