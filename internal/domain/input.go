package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type InstanceInput struct {
	ID         string      `json:"id,omitempty" yaml:"id,omitempty"`
	InstanceID string      `json:"instance_id,omitempty" yaml:"instance_id,omitempty"`
	Items      []ItemInput `json:"items" yaml:"items"`
	Capacity   *float64    `json:"capacity" yaml:"capacity"`
}

type ItemInput struct {
	ID     string   `json:"id,omitempty" yaml:"id,omitempty"`
	Value  *float64 `json:"value" yaml:"value"`
	Weight *float64 `json:"weight" yaml:"weight"`
}

func (r *InstanceInput) Validate() error {
	if r.Capacity == nil {
		return &InstanceError{InstanceID: r.Name(), Index: -1, Reason: "capacity is required"}
	}
	for i, item := range r.Items {
		if item.Value == nil {
			return &InstanceError{InstanceID: r.Name(), Index: i, Reason: "value is required"}
		}
		if item.Weight == nil {
			return &InstanceError{InstanceID: r.Name(), Index: i, Reason: "weight is required"}
		}
	}
	return nil
}

// Name prefers the explicit id over the legacy instance_id key.
func (r *InstanceInput) Name() string {
	if r.ID != "" {
		return r.ID
	}
	return r.InstanceID
}

// ToDomain synthesizes item_<index> for items without an id and falls back to
// fallbackID when the input carries no instance id.
func (r *InstanceInput) ToDomain(fallbackID string) (*Instance, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	id := r.Name()
	if id == "" {
		id = fallbackID
	}

	items := make([]Item, 0, len(r.Items))
	for i, in := range r.Items {
		itemID := in.ID
		if itemID == "" {
			itemID = fmt.Sprintf("item_%d", i)
		}
		items = append(items, Item{ID: itemID, Value: *in.Value, Weight: *in.Weight})
	}

	return NewInstance(id, items, *r.Capacity)
}

// DecodeInstance parses a JSON or YAML instance document. The format is taken
// from the locator extension; anything other than .yaml/.yml is read as JSON.
// The locator's file stem becomes the instance id when the document has none.
func DecodeInstance(locator string, data []byte) (*Instance, error) {
	var input InstanceInput

	switch strings.ToLower(filepath.Ext(locator)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInstance, locator, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&input); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInstance, locator, err)
		}
	}

	stem := strings.TrimSuffix(filepath.Base(locator), filepath.Ext(locator))
	return input.ToDomain(stem)
}
