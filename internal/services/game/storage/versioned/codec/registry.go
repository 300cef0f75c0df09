package codec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/gamestate/internal/platform/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	// ErrUnknownSchema indicates no schema is registered for an object type.
	ErrUnknownSchema = apperrors.New(apperrors.CodeSchemaUnknown, "unknown object schema")
	// ErrUnknownVariant indicates a polymorphic payload with a missing or
	// unrecognized discriminator.
	ErrUnknownVariant = apperrors.New(apperrors.CodeSchemaUnknownVariant, "unknown schema variant")
)

// Tagged is implemented by values of polymorphic schemas. Tag returns the
// discriminator value written into the payload.
type Tagged interface {
	Tag() string
}

type schema struct {
	newDefault func() any
	accepts    func(any) bool
	decode     func([]byte) (any, error)
	tagField   string
	knownTag   func(string) bool
}

// Registry maps object types to their schemas. It is safe for concurrent use;
// registration normally happens once at startup.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]schema)}
}

// Register adds a structural schema for typ. Payloads decode into a copy of
// the default value so fields absent from older payloads keep their defaults.
func Register[T any](r *Registry, typ string, newDefault func() T) error {
	if newDefault == nil {
		return fmt.Errorf("register %s: default factory is required", typ)
	}
	return r.add(typ, schema{
		newDefault: func() any { return newDefault() },
		accepts:    accepts[T],
		decode: func(payload []byte) (any, error) {
			value := newDefault()
			if err := json.Unmarshal(payload, &value); err != nil {
				return nil, err
			}
			return value, nil
		},
	})
}

// Decoder decodes one concrete variant of a polymorphic schema.
type Decoder[T any] func(payload []byte) (T, error)

// Variants is the decode table of a polymorphic schema.
type Variants[T any] struct {
	// Field is the JSON field holding the discriminator.
	Field string
	// Decoders maps discriminator values to variant decoders.
	Decoders map[string]Decoder[T]
}

// RegisterPolymorphic adds a discriminated schema for typ. T is normally an
// interface implemented by every variant.
func RegisterPolymorphic[T any](r *Registry, typ string, newDefault func() T, variants Variants[T]) error {
	if newDefault == nil {
		return fmt.Errorf("register %s: default factory is required", typ)
	}
	field := strings.TrimSpace(variants.Field)
	if field == "" {
		return fmt.Errorf("register %s: discriminator field is required", typ)
	}
	if len(variants.Decoders) == 0 {
		return fmt.Errorf("register %s: at least one variant is required", typ)
	}
	table := make(map[string]Decoder[T], len(variants.Decoders))
	for tag, decode := range variants.Decoders {
		if decode == nil {
			return fmt.Errorf("register %s: variant %q has no decoder", typ, tag)
		}
		table[tag] = decode
	}

	return r.add(typ, schema{
		newDefault: func() any { return newDefault() },
		accepts:    accepts[T],
		tagField:   field,
		knownTag: func(tag string) bool {
			_, ok := table[tag]
			return ok
		},
		decode: func(payload []byte) (any, error) {
			discriminator := gjson.GetBytes(payload, field)
			if !discriminator.Exists() {
				return nil, apperrors.WrapWithMetadata(apperrors.CodeSchemaUnknownVariant,
					fmt.Sprintf("%s payload has no %q discriminator", typ, field),
					map[string]string{"type": typ, "field": field}, nil)
			}
			decode, ok := table[discriminator.String()]
			if !ok {
				return nil, apperrors.WrapWithMetadata(apperrors.CodeSchemaUnknownVariant,
					fmt.Sprintf("%s has no variant %q (known: %s)", typ, discriminator.String(), strings.Join(sortedTags(table), ", ")),
					map[string]string{"type": typ, "field": field, "variant": discriminator.String()}, nil)
			}
			value, err := decode(payload)
			if err != nil {
				return nil, err
			}
			return value, nil
		},
	})
}

// Variant returns a Decoder that unmarshals the payload into V and exposes it
// as the schema type T.
func Variant[T any, V any]() Decoder[T] {
	return func(payload []byte) (T, error) {
		var zero T
		var value V
		if err := json.Unmarshal(payload, &value); err != nil {
			return zero, err
		}
		typed, ok := any(value).(T)
		if !ok {
			return zero, fmt.Errorf("variant %T does not satisfy the schema type", value)
		}
		return typed, nil
	}
}

// Has reports whether typ is registered.
func (r *Registry) Has(typ string) bool {
	_, err := r.lookup(typ)
	return err == nil
}

// Types returns the registered object types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.schemas))
	for typ := range r.schemas {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Default returns a fresh default value for typ.
func (r *Registry) Default(typ string) (any, error) {
	s, err := r.lookup(typ)
	if err != nil {
		return nil, err
	}
	return s.newDefault(), nil
}

// Encode serializes value as a payload of typ. Values of polymorphic schemas
// must implement Tagged; their tag is stamped into the discriminator field.
func (r *Registry) Encode(typ string, value any) ([]byte, error) {
	s, err := r.lookup(typ)
	if err != nil {
		return nil, err
	}
	if !s.accepts(value) {
		return nil, fmt.Errorf("encode %s: unexpected value type %T", typ, value)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	if s.tagField == "" {
		return payload, nil
	}

	tagged, ok := value.(Tagged)
	if !ok {
		return nil, fmt.Errorf("encode %s: %T does not carry a variant tag", typ, value)
	}
	if !s.knownTag(tagged.Tag()) {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeSchemaUnknownVariant,
			fmt.Sprintf("encode %s: no variant %q", typ, tagged.Tag()),
			map[string]string{"type": typ, "field": s.tagField, "variant": tagged.Tag()}, nil)
	}
	payload, err = sjson.SetBytes(payload, s.tagField, tagged.Tag())
	if err != nil {
		return nil, fmt.Errorf("encode %s: stamp %q: %w", typ, s.tagField, err)
	}
	return payload, nil
}

// Decode deserializes a payload of typ.
func (r *Registry) Decode(typ string, payload []byte) (any, error) {
	s, err := r.lookup(typ)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("decode %s: payload is not valid json", typ)
	}
	value, err := s.decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return value, nil
}

func (r *Registry) add(typ string, s schema) error {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return fmt.Errorf("schema type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[typ]; exists {
		return fmt.Errorf("schema %q already registered", typ)
	}
	r.schemas[typ] = s
	return nil
}

func (r *Registry) lookup(typ string) (schema, error) {
	if r == nil {
		return schema{}, apperrors.New(apperrors.CodeSchemaUnknown, "schema registry is not configured")
	}
	r.mu.RLock()
	s, ok := r.schemas[typ]
	r.mu.RUnlock()
	if !ok {
		return schema{}, apperrors.WrapWithMetadata(apperrors.CodeSchemaUnknown,
			fmt.Sprintf("no schema registered for %q", typ), map[string]string{"type": typ}, nil)
	}
	return s, nil
}

func accepts[T any](value any) bool {
	_, ok := value.(T)
	return ok
}

func sortedTags[T any](table map[string]Decoder[T]) []string {
	tags := make([]string, 0, len(table))
	for tag := range table {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
