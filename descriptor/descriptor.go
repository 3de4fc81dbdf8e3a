// Package descriptor loads and classifies per-service deployment descriptors.
//
// A descriptor is a small JSON document, owned by version control, that
// declares one deployable agent service: its name, the identity it runs as,
// its reachability, and its environment bindings. It is read fresh on every
// invocation and never written back.
package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Sentinel errors for the fatal, structural failure modes. Callers branch on
// these with errors.Is; everything else is wrapped detail.
var (
	// ErrNotFound indicates the descriptor file does not exist.
	ErrNotFound = errors.New("descriptor not found")
	// ErrParse indicates the descriptor file is not valid JSON.
	ErrParse = errors.New("descriptor parse failure")
	// ErrValidation indicates a required descriptor field is missing or empty.
	ErrValidation = errors.New("descriptor validation failure")
)

// DefaultSecretVersion is applied to any secret reference that does not pin
// a version of its own.
const DefaultSecretVersion = "latest"

// reservedNames are binding names the platform supplies implicitly. The
// synthesizer injects these itself, so a descriptor declaring one is always
// skipped, whatever else the binding carries.
var reservedNames = map[string]struct{}{
	"ENVIRONMENT":           {},
	"GOOGLE_CLOUD_PROJECT":  {},
	"GOOGLE_CLOUD_LOCATION": {},
}

// IsReservedName reports whether name is supplied by the surrounding
// infrastructure and must not be forwarded from a descriptor.
func IsReservedName(name string) bool {
	_, ok := reservedNames[name]
	return ok
}

// Descriptor declares one deployable service.
type Descriptor struct {
	ServiceName          string    `json:"service_name"`
	ServiceAccount       string    `json:"service_account,omitempty"`
	AllowUnauthenticated bool      `json:"allow_unauthenticated"`
	NoTraffic            bool      `json:"no_traffic"`
	Invokers             []string  `json:"invokers"`
	EnvVars              []Binding `json:"env_vars"`
}

// Binding is one declared environment variable. Which fields are present
// decides its Kind; Value is a pointer so an explicit empty string remains
// distinguishable from an absent field.
type Binding struct {
	Name    string  `json:"name"`
	Value   *string `json:"value,omitempty"`
	Secret  string  `json:"secret,omitempty"`
	Version string  `json:"version,omitempty"`
}

// Kind is the resolved shape of a binding.
type Kind int

const (
	// KindInert is a binding with neither value nor secret; it contributes
	// nothing but is not an error.
	KindInert Kind = iota
	// KindReserved is a binding whose name the platform supplies itself.
	KindReserved
	// KindSecretRef is a reference to a secret store entry.
	KindSecretRef
	// KindLiteral is a plain key/value pair.
	KindLiteral
)

func (k Kind) String() string {
	switch k {
	case KindReserved:
		return "reserved"
	case KindSecretRef:
		return "secret_ref"
	case KindLiteral:
		return "literal"
	default:
		return "inert"
	}
}

// Classify resolves the binding to exactly one Kind. The order is load
// bearing: a reserved name always wins, then a non-empty secret reference
// beats a literal, then any present value (empty string included) is a
// literal. Anything left is inert.
func (b Binding) Classify() Kind {
	if IsReservedName(b.Name) {
		return KindReserved
	}
	if b.Secret != "" {
		return KindSecretRef
	}
	if b.Value != nil {
		return KindLiteral
	}
	return KindInert
}

// SecretVersion returns the pinned version of a secret reference, or
// DefaultSecretVersion when the descriptor left it out.
func (b Binding) SecretVersion() string {
	if b.Version == "" {
		return DefaultSecretVersion
	}
	return b.Version
}

// Load reads and validates the descriptor at path, applying defaults.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.applyDefaults()
	return &d, nil
}

// Validate checks the required fields. It is also re-run by the command
// synthesizer so a hand-built descriptor cannot reach an external call.
func (d *Descriptor) Validate() error {
	if strings.TrimSpace(d.ServiceName) == "" {
		return fmt.Errorf("%w: service_name is required and must be non-empty", ErrValidation)
	}
	return nil
}

func (d *Descriptor) applyDefaults() {
	if d.Invokers == nil {
		d.Invokers = []string{}
	}
	if d.EnvVars == nil {
		d.EnvVars = []Binding{}
	}
	for i := range d.EnvVars {
		b := &d.EnvVars[i]
		if b.Classify() == KindSecretRef && b.Version == "" {
			b.Version = DefaultSecretVersion
		}
	}
}

// SecretRefs returns the bindings that classify as secret references, in
// declared order.
func (d *Descriptor) SecretRefs() []Binding {
	var refs []Binding
	for _, b := range d.EnvVars {
		if b.Classify() == KindSecretRef {
			refs = append(refs, b)
		}
	}
	return refs
}
