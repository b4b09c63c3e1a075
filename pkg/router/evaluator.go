package router

import (
	"fmt"
	"strconv"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
)

// Evaluator is a pluggable cost function over a candidate step. StepCost
// must be monotone (never return a negative cost) so the shortest-path
// search over it stays correct; every constructor in this file rejects a
// configuration that could produce a negative cost.
//
// prevTag carries whatever the previous step's StepCost call returned, so
// an evaluator whose cost depends on path history (the turn-penalty
// evaluator) can compare consecutive steps without the router knowing
// about orientation tags at all. An evaluator indifferent to history just
// passes prevTag through unchanged.
type Evaluator interface {
	StepCost(path *kerneltypes.Path, prevTag string) (cost int64, tag string)
}

// DistanceEvaluator sums path lengths.
type DistanceEvaluator struct{}

// NewDistanceEvaluator returns the Distance evaluator.
func NewDistanceEvaluator() *DistanceEvaluator {
	return &DistanceEvaluator{}
}

func (e *DistanceEvaluator) StepCost(path *kerneltypes.Path, prevTag string) (int64, string) {
	return path.Length, prevTag
}

// orientationProperty is the Path property key consulted by
// TurnPenaltyEvaluator to tag a path's travel orientation.
const orientationProperty = "orientation"

// TurnPenaltyEvaluator sums path lengths and adds a constant cost each
// time consecutive steps carry a different orientationProperty value.
type TurnPenaltyEvaluator struct {
	penalty int64
}

// NewTurnPenaltyEvaluator returns a Turn penalty evaluator. penalty must be
// non-negative.
func NewTurnPenaltyEvaluator(penalty int64) (*TurnPenaltyEvaluator, error) {
	if penalty < 0 {
		return nil, fmt.Errorf("turn penalty must be non-negative, got %d", penalty)
	}
	return &TurnPenaltyEvaluator{penalty: penalty}, nil
}

func (e *TurnPenaltyEvaluator) StepCost(path *kerneltypes.Path, prevTag string) (int64, string) {
	tag := path.Properties[orientationProperty]
	cost := path.Length
	if prevTag != "" && tag != prevTag {
		cost += e.penalty
	}
	return cost, tag
}

// explicitPenaltyProperty is the Path property key consulted by
// ExplicitPenaltyEvaluator.
const explicitPenaltyProperty = "penalty"

// ExplicitPenaltyEvaluator adds a per-path penalty declared on the path
// itself, when present.
type ExplicitPenaltyEvaluator struct{}

// NewExplicitPenaltyEvaluator returns the Explicit penalty evaluator.
func NewExplicitPenaltyEvaluator() *ExplicitPenaltyEvaluator {
	return &ExplicitPenaltyEvaluator{}
}

func (e *ExplicitPenaltyEvaluator) StepCost(path *kerneltypes.Path, prevTag string) (int64, string) {
	raw, ok := path.Properties[explicitPenaltyProperty]
	if !ok {
		return 0, prevTag
	}
	penalty, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || penalty < 0 {
		return 0, prevTag
	}
	return penalty, prevTag
}

// weightedEvaluator pairs an Evaluator with its weight in a Composite sum.
type weightedEvaluator struct {
	evaluator Evaluator
	weight    float64
}

// CompositeEvaluator is a weighted sum of other evaluators.
type CompositeEvaluator struct {
	terms []weightedEvaluator
}

// NewCompositeEvaluator returns an evaluator that sums evaluators[i].StepCost
// scaled by weights[i]. Every weight must be non-negative so the composite
// stays monotone as long as its terms are.
func NewCompositeEvaluator(evaluators []Evaluator, weights []float64) (*CompositeEvaluator, error) {
	if len(evaluators) != len(weights) {
		return nil, fmt.Errorf("composite evaluator: %d evaluators but %d weights", len(evaluators), len(weights))
	}
	terms := make([]weightedEvaluator, len(evaluators))
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("composite evaluator: weight %d is negative", i)
		}
		terms[i] = weightedEvaluator{evaluator: evaluators[i], weight: w}
	}
	return &CompositeEvaluator{terms: terms}, nil
}

// StepCost sums every term's weighted cost. Only one underlying evaluator
// is expected to produce a meaningful tag (the turn-penalty evaluator);
// the last term whose tag differs from prevTag determines the tag
// Composite reports onward.
func (e *CompositeEvaluator) StepCost(path *kerneltypes.Path, prevTag string) (int64, string) {
	var total float64
	tag := prevTag
	for _, term := range e.terms {
		cost, t := term.evaluator.StepCost(path, prevTag)
		total += float64(cost) * term.weight
		if t != prevTag {
			tag = t
		}
	}
	return int64(total + 0.5), tag
}
