package pruning

import (
	"fmt"

	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/metadata"
	"github.com/tessera-db/tessera/pkg/types"
)

// PruningInstance is one AND-branch's accumulated understanding of the
// partition column: the tightest bound seen for each comparison class,
// membership values, and at most one pre-hashed equality token.
type PruningInstance struct {
	LessThan     *types.Value
	LessEqual    *types.Value
	Equal        *types.Value
	GreaterEqual *types.Value
	GreaterThan  *types.Value

	// MemberValues holds candidate equality values from IN lists.
	// Duplicates across separate lists are not deduplicated here.
	MemberValues []types.Value

	// HashedEqual is the pre-computed hash token, hash tables only.
	HashedEqual *types.Value

	// HasValidConstraint is true iff at least one bound above is set.
	HasValidConstraint bool

	// EvaluatesToFalse marks a branch that folded two incompatible
	// equality bounds. Such a branch selects no shards.
	EvaluatesToFalse bool

	// IsPartial marks an instance still being expanded. Partial
	// instances are never used for pruning.
	IsPartial bool
}

// buildInstance folds one branch's conditions into a PruningInstance.
// Opaque markers are skipped; a branch whose every slot is opaque or
// uninterpreted yields an instance without a valid constraint, which
// the orchestrator treats as unconstrained.
func buildInstance(b branch, desc *metadata.TableDescriptor) (*PruningInstance, error) {
	inst := &PruningInstance{}

	for _, cond := range b {
		if cond.opaque {
			continue
		}
		if err := inst.addCondition(cond, desc); err != nil {
			return nil, err
		}
	}

	return inst, nil
}

// addCondition folds one classified condition into the instance. The
// tie-break rules are associative, so fold order does not matter.
func (inst *PruningInstance) addCondition(cond *condition, desc *metadata.TableDescriptor) error {
	if cond.hashed {
		if inst.HashedEqual != nil {
			return errors.NewInternalError(
				fmt.Sprintf("table %s: multiple pre-hashed equality restrictions in one branch", desc.TableName), nil)
		}
		v := cond.value
		inst.HashedEqual = &v
		inst.HasValidConstraint = true
		return nil
	}

	if len(cond.members) > 0 {
		inst.MemberValues = append(inst.MemberValues, cond.members...)
		inst.HasValidConstraint = true
		return nil
	}

	cmp := desc.ValueCompare

	switch cond.class {
	case ClassEqual:
		if inst.Equal == nil {
			v := cond.value
			inst.Equal = &v
			inst.HasValidConstraint = true
			return nil
		}
		c, err := cmp(*inst.Equal, cond.value)
		if err != nil {
			return comparatorError(desc, err)
		}
		if c != 0 {
			// The column cannot equal two different constants.
			inst.EvaluatesToFalse = true
		}
		return nil

	case ClassLess:
		return inst.tightenUpper(&inst.LessThan, cond.value, cmp, desc)
	case ClassLessEqual:
		return inst.tightenUpper(&inst.LessEqual, cond.value, cmp, desc)
	case ClassGreaterEqual:
		return inst.tightenLower(&inst.GreaterEqual, cond.value, cmp, desc)
	case ClassGreater:
		return inst.tightenLower(&inst.GreaterThan, cond.value, cmp, desc)

	default:
		// NOT_EQUAL and unknown classes carry no usable bound.
		return nil
	}
}

// tightenUpper keeps the smaller bound: a more restrictive upper bound
// wins.
func (inst *PruningInstance) tightenUpper(slot **types.Value, v types.Value, cmp types.CompareFunc, desc *metadata.TableDescriptor) error {
	if *slot == nil {
		bound := v
		*slot = &bound
		inst.HasValidConstraint = true
		return nil
	}
	c, err := cmp(v, **slot)
	if err != nil {
		return comparatorError(desc, err)
	}
	if c < 0 {
		bound := v
		*slot = &bound
	}
	return nil
}

// tightenLower keeps the larger bound: a more restrictive lower bound
// wins.
func (inst *PruningInstance) tightenLower(slot **types.Value, v types.Value, cmp types.CompareFunc, desc *metadata.TableDescriptor) error {
	if *slot == nil {
		bound := v
		*slot = &bound
		inst.HasValidConstraint = true
		return nil
	}
	c, err := cmp(v, **slot)
	if err != nil {
		return comparatorError(desc, err)
	}
	if c > 0 {
		bound := v
		*slot = &bound
	}
	return nil
}

// hasEqualityClass reports whether the instance constrains the column
// with any equality-shaped bound. Hash-partitioned tables can only be
// pruned through these.
func (inst *PruningInstance) hasEqualityClass() bool {
	return inst.Equal != nil || len(inst.MemberValues) > 0 || inst.HashedEqual != nil
}

// hasRangeBounds reports whether any inequality bound is set.
func (inst *PruningInstance) hasRangeBounds() bool {
	return inst.LessThan != nil || inst.LessEqual != nil ||
		inst.GreaterEqual != nil || inst.GreaterThan != nil
}

// comparatorError wraps a comparator failure as the fatal metadata
// error the whole pruning call aborts with.
func comparatorError(desc *metadata.TableDescriptor, err error) error {
	return errors.Wrap(errors.ErrCategoryMetadata, errors.CodeComparatorFailed,
		fmt.Sprintf("table %s: partition column comparator failed", desc.TableName), err)
}
