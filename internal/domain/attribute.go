package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

// Attribute keys accepted on variations.
const (
	AttrSizeCM   = "SIZE_CM"
	AttrSize     = "SIZE"
	AttrColor    = "COLOR"
	AttrWeightG  = "WEIGHT_G"
	AttrMaterial = "MATERIAL"
	AttrElements = "ELEMENTS"
)

// AttributeDefinition describes one registry entry.
type AttributeDefinition struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

var attributeRegistry = map[string]AttributeDefinition{
	AttrSizeCM:   {Key: AttrSizeCM, Name: "Size", Unit: "cm"},
	AttrSize:     {Key: AttrSize, Name: "Size"},
	AttrColor:    {Key: AttrColor, Name: "Color"},
	AttrWeightG:  {Key: AttrWeightG, Name: "Weight", Unit: "g"},
	AttrMaterial: {Key: AttrMaterial, Name: "Material"},
	AttrElements: {Key: AttrElements, Name: "Elements"},
}

// LookupAttribute returns the registry entry for key.
func LookupAttribute(key string) (AttributeDefinition, bool) {
	def, ok := attributeRegistry[key]
	return def, ok
}

// AttributeDefinitions returns the registry sorted by key.
func AttributeDefinitions() []AttributeDefinition {
	defs := make([]AttributeDefinition, 0, len(attributeRegistry))
	for _, d := range attributeRegistry {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Key < defs[j].Key })
	return defs
}

// VariationAttribute is one key/value pair on a variation, e.g. SIZE_CM=8x8.
type VariationAttribute struct {
	ID          string `json:"id"`
	VariationID string `json:"variation_id"`
	Key         string `json:"attribute_key"`
	Value       string `json:"value"`
}

// Display renders the value with its unit, e.g. "50 g".
func (a VariationAttribute) Display() string {
	def, ok := LookupAttribute(a.Key)
	if !ok || def.Unit == "" {
		return a.Value
	}
	return a.Value + " " + def.Unit
}

// ValidateAttributes checks keys against the registry, rejects duplicate
// keys and requires WEIGHT_G to be a positive integer.
func ValidateAttributes(attrs []VariationAttribute) error {
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		if _, ok := LookupAttribute(a.Key); !ok {
			return apperrors.InvalidInput(fmt.Sprintf("unknown attribute key %q", a.Key))
		}
		if _, dup := seen[a.Key]; dup {
			return apperrors.InvalidInput(fmt.Sprintf("attribute %q appears more than once", a.Key))
		}
		seen[a.Key] = struct{}{}

		if strings.TrimSpace(a.Value) == "" {
			return apperrors.InvalidInput(fmt.Sprintf("attribute %q has an empty value", a.Key))
		}
		if a.Key == AttrWeightG {
			if _, err := parseGrams(a.Value); err != nil {
				return apperrors.InvalidInput(fmt.Sprintf("attribute %s must be a positive integer, got %q", AttrWeightG, a.Value))
			}
		}
	}
	return nil
}

// AttributeSignature is a canonical string for an attribute set; two
// variations with equal signatures are indistinguishable to a shopper.
func AttributeSignature(attrs []VariationAttribute) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range sortedAttributes(attrs) {
		parts = append(parts, a.Key+"="+strings.ToLower(strings.TrimSpace(a.Value)))
	}
	return strings.Join(parts, ";")
}

func sortedAttributes(attrs []VariationAttribute) []VariationAttribute {
	out := make([]VariationAttribute, len(attrs))
	copy(out, attrs)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func parseGrams(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("grams must be positive")
	}
	return n, nil
}
