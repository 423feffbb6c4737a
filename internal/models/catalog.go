package models

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordKind describes one catalog collection and its upload policy.
type RecordKind struct {
	Name           string
	Collection     string
	FileField      string
	ImageRequired  bool
	RequiredFields []string
	// AllowedFields limits which client fields are stored. Nil accepts everything.
	AllowedFields []string
}

var (
	ProductKind = RecordKind{
		Name:       "product",
		Collection: "collectionProduct",
		FileField:  "productImage",
	}
	CategoryKind = RecordKind{
		Name:          "category",
		Collection:    "categories",
		FileField:     "image",
		AllowedFields: []string{"name", "slug", "description"},
	}
	SliderKind = RecordKind{
		Name:           "slider",
		Collection:     "sliders",
		FileField:      "sliderImage",
		ImageRequired:  true,
		RequiredFields: []string{"title"},
		AllowedFields:  []string{"title"},
	}
)

var reservedFields = map[string]struct{}{
	"_id":       {},
	"image":     {},
	"createdAt": {},
	"updatedAt": {},
}

// Sanitize drops reserved keys and, when the kind has a whitelist, anything outside it.
func (k RecordKind) Sanitize(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		if _, reserved := reservedFields[key]; reserved {
			continue
		}
		if k.AllowedFields != nil && !contains(k.AllowedFields, key) {
			continue
		}
		out[key] = value
	}
	return out
}

// CheckRequired returns a validation error for the first required field that is absent or blank.
func (k RecordKind) CheckRequired(fields map[string]interface{}) error {
	for _, name := range k.RequiredFields {
		value, ok := fields[name]
		if !ok || value == nil || fmt.Sprint(value) == "" {
			return MissingFieldError(capitalize(name))
		}
	}
	return nil
}

// CatalogRecord is a product, category or slider document.
type CatalogRecord struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty"`
	Fields    map[string]interface{} `bson:",inline"`
	Image     *string                `bson:"image"`
	CreatedAt time.Time              `bson:"createdAt"`
	UpdatedAt time.Time              `bson:"updatedAt"`
}

// ImageRef returns the stored public reference or an empty string.
func (r *CatalogRecord) ImageRef() string {
	if r == nil || r.Image == nil {
		return ""
	}
	return *r.Image
}

// MarshalJSON flattens Fields next to the fixed attributes.
func (r CatalogRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+4)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["_id"] = r.ID
	out["image"] = r.Image
	out["createdAt"] = r.CreatedAt
	out["updatedAt"] = r.UpdatedAt
	return json.Marshal(out)
}

func (r *CatalogRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var rec CatalogRecord
	if v, ok := raw["_id"]; ok {
		if err := json.Unmarshal(v, &rec.ID); err != nil {
			return err
		}
	}
	if v, ok := raw["image"]; ok {
		if err := json.Unmarshal(v, &rec.Image); err != nil {
			return err
		}
	}
	if v, ok := raw["createdAt"]; ok {
		if err := json.Unmarshal(v, &rec.CreatedAt); err != nil {
			return err
		}
	}
	if v, ok := raw["updatedAt"]; ok {
		if err := json.Unmarshal(v, &rec.UpdatedAt); err != nil {
			return err
		}
	}
	rec.Fields = make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if _, reserved := reservedFields[k]; reserved {
			continue
		}
		var value interface{}
		if err := json.Unmarshal(v, &value); err != nil {
			return err
		}
		rec.Fields[k] = value
	}
	*r = rec
	return nil
}

// BulkResult mirrors the counts returned by an updateMany.
type BulkResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// CheckPresent rejects required fields that an update sets to a blank value.
// Fields absent from the update are left alone.
func (k RecordKind) CheckPresent(fields map[string]interface{}) error {
	for _, name := range k.RequiredFields {
		value, ok := fields[name]
		if ok && (value == nil || fmt.Sprint(value) == "") {
			return MissingFieldError(capitalize(name))
		}
	}
	return nil
}

// CacheKey is where the cached listing of this kind lives.
func (k RecordKind) CacheKey() string {
	return "catalog:" + k.Name + ":all"
}
