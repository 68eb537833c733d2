package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"knapsack-bench/internal/domain"
)

// Family is the side of a comparison a record was loaded for.
type Family string

const (
	FamilyChallenger Family = "challenger"
	FamilyBaseline   Family = "baseline"
)

// RawRecord is a persisted run record as loaded by a storage collaborator.
type RawRecord struct {
	Locator string
	Data    []byte
}

// Accepted source names per canonical field, in priority order. Each list is
// tried at the top level first, then under every container.
var (
	InstanceAliases  = []string{"instance_id", "instance", "Instance", "instance_name"}
	SolverAliases    = []string{"solver", "solver_name", "algorithm"}
	StatusAliases    = []string{"status", "solver_status", "termination"}
	ObjectiveAliases = []string{"objective", "objective_value", "best_value", "obj"}
	RuntimeAliases   = []string{"runtime", "runtime_s", "runtime_seconds", "runtime_sec", "elapsed_s", "duration_s"}
	SelectedAliases  = []string{"selected_count", "selected", "chosen_count", "selected_items"}
	WeightAliases    = []string{"total_weight", "weight_used"}

	Containers = []string{"metrics", "metadata"}
)

// baselineSolverNames are producer tags reported as "baseline" when a record
// is loaded on the baseline side.
var baselineSolverNames = map[string]bool{
	"pulp":   true,
	"cbc":    true,
	"gurobi": true,
	"solver": true,
}

type Normalizer struct {
	canon  *Canonicalizer
	logger *zap.Logger
}

func NewNormalizer(canon *Canonicalizer, logger *zap.Logger) *Normalizer {
	if canon == nil {
		canon = NewCanonicalizer(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{canon: canon, logger: logger}
}

// NormalizeBatch normalizes every record it can. Unparseable records are
// logged, returned as errors and skipped; they never stop the batch.
func (n *Normalizer) NormalizeBatch(raws []RawRecord, family Family) ([]domain.RunRecord, []error) {
	records := make([]domain.RunRecord, 0, len(raws))
	var skipped []error

	for _, raw := range raws {
		rec, err := n.Normalize(raw, family)
		if err != nil {
			n.logger.Warn("skipping run record",
				zap.String("locator", raw.Locator),
				zap.String("family", string(family)),
				zap.Error(err))
			skipped = append(skipped, err)
			continue
		}
		records = append(records, rec)
	}

	return records, skipped
}

func (n *Normalizer) Normalize(raw RawRecord, family Family) (domain.RunRecord, error) {
	doc, err := decodeDocument(raw.Data)
	if err != nil {
		return domain.RunRecord{}, &domain.RecordError{Locator: raw.Locator, Err: fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)}
	}
	return n.NormalizeDocument(raw.Locator, doc, family)
}

// NormalizeDocument maps an already-decoded record onto the canonical schema.
func (n *Normalizer) NormalizeDocument(locator string, doc map[string]any, family Family) (domain.RunRecord, error) {
	var missing []string

	rawInstance := ""
	instanceID := ""
	if v, ok := Resolve(doc, InstanceAliases); ok {
		rawInstance = toString(v)
		instanceID = n.canon.Canonical(rawInstance)
	}
	if instanceID == "" && locator != "" {
		rawInstance = locator
		instanceID = n.canon.FromLocator(locator)
	}
	if instanceID == "" {
		return domain.RunRecord{}, &domain.RecordError{Locator: locator, Err: fmt.Errorf("%w: no instance identity", domain.ErrMalformedRecord)}
	}

	rec := domain.RunRecord{
		InstanceID:    instanceID,
		RawInstanceID: rawInstance,
		SolverName:    n.solverName(doc, family),
		Status:        domain.StatusUnknown,
		Provenance:    locator,
	}

	if v, ok := Resolve(doc, StatusAliases); ok {
		rec.Status = domain.ParseStatus(toString(v))
	} else {
		missing = append(missing, "status")
	}

	if rec.Objective = resolveFloat(doc, ObjectiveAliases); rec.Objective == nil {
		missing = append(missing, "objective")
	}
	if rec.RuntimeSeconds = resolveFloat(doc, RuntimeAliases); rec.RuntimeSeconds == nil {
		missing = append(missing, "runtime_seconds")
	}
	if v, ok := Resolve(doc, SelectedAliases); ok {
		rec.SelectedCount = toCount(v)
	}
	if rec.SelectedCount == nil {
		missing = append(missing, "selected_count")
	}
	if rec.TotalWeight = resolveFloat(doc, WeightAliases); rec.TotalWeight == nil {
		missing = append(missing, "total_weight")
	}

	if len(missing) > 0 {
		n.logger.Debug("run record has unavailable fields",
			zap.String("locator", locator),
			zap.Error(fmt.Errorf("%w: %s", domain.ErrMissingField, strings.Join(missing, ", "))))
	}

	return rec, nil
}

func (n *Normalizer) solverName(doc map[string]any, family Family) string {
	name := ""
	if v, ok := Resolve(doc, SolverAliases); ok {
		name = toString(v)
	}

	if family == FamilyBaseline {
		if name == "" || baselineSolverNames[strings.ToLower(name)] {
			return string(FamilyBaseline)
		}
	}
	if name == "" {
		return "unknown"
	}
	return name
}

// Resolve returns the first present, non-empty value among aliases, looking at
// the top level before one level of nesting under Containers.
func Resolve(doc map[string]any, aliases []string) (any, bool) {
	if v, ok := lookup(doc, aliases); ok {
		return v, true
	}
	for _, container := range Containers {
		nested, ok := doc[container].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := lookup(nested, aliases); ok {
			return v, true
		}
	}
	return nil, false
}

func lookup(m map[string]any, aliases []string) (any, bool) {
	for _, alias := range aliases {
		v, ok := m[alias]
		if !ok || isEmpty(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		trimmed := strings.TrimSpace(t)
		return trimmed == "" || trimmed == "-"
	default:
		return false
	}
}

func decodeDocument(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("record is not an object")
	}
	return doc, nil
}

func resolveFloat(doc map[string]any, aliases []string) *float64 {
	v, ok := Resolve(doc, aliases)
	if !ok {
		return nil
	}
	return toFloat(v)
}

// toFloat never fails: anything that is not a finite number is absent.
func toFloat(v any) *float64 {
	var f float64

	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// toCount accepts a non-negative integral number or a list of selected ids.
func toCount(v any) *int {
	if list, ok := v.([]any); ok {
		c := len(list)
		return &c
	}

	f := toFloat(v)
	if f == nil || *f < 0 || *f != math.Trunc(*f) {
		return nil
	}
	c := int(*f)
	return &c
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
