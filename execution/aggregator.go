package execution

import (
	"fmt"

	"github.com/dsg-courses/heapdb/common"
	"github.com/dsg-courses/heapdb/storage"
)

// AggOp is the closed set of aggregation operators.
type AggOp int8

const (
	MIN AggOp = iota
	MAX
	SUM
	AVG
	COUNT
)

func (op AggOp) String() string {
	switch op {
	case MIN:
		return "min"
	case MAX:
		return "max"
	case SUM:
		return "sum"
	case AVG:
		return "avg"
	case COUNT:
		return "count"
	}
	return "unknown"
}

// NoGrouping is passed as groupField to build a single-bucket aggregate
// over the entire input.
const NoGrouping = -1

// groupState tracks the running aggregate for one group. count is always
// maintained; sum is maintained for SUM and AVG, so AVG is derived as
// sum/count at emit time, never folded together early the way a SUM-only
// accumulator would.
type groupState struct {
	sum   int64
	count int64
	min   common.Value
	max   common.Value
}

// Aggregator is a pull-based operator that drains its child once, during
// Open, building an in-memory per-group table, then yields one tuple per
// group on subsequent Next calls.
type Aggregator struct {
	child      Executor
	groupField int
	groupType  common.Type
	aggField   int
	op         AggOp

	desc *storage.TupleDesc

	groupOrder []common.Value
	groups     map[common.Value]*groupState

	results []storage.Tuple
	pos     int
}

// NewAggregator validates the (aggField, op) pairing against child's schema
// and builds the output TupleDesc. STRING aggregate fields only support
// COUNT; any other op on a STRING field is a construction-time
// IllegalArgumentError.
func NewAggregator(child Executor, groupField int, groupType common.Type, aggField int, op AggOp) (*Aggregator, error) {
	childDesc := child.TupleDesc()
	aggFieldType := childDesc.Types[aggField]
	if aggFieldType == common.StringType && op != COUNT {
		return nil, common.NewIllegalArgumentError("string aggregate field only supports COUNT, got %s", op)
	}

	aggName := fmt.Sprintf("%s (%s)", op, childDesc.FieldNames[aggField])
	var desc *storage.TupleDesc
	if groupField == NoGrouping {
		desc = storage.NewTupleDesc([]common.Type{common.IntType}, []string{aggName})
	} else {
		desc = storage.NewTupleDesc(
			[]common.Type{groupType, common.IntType},
			[]string{childDesc.FieldNames[groupField], aggName},
		)
	}

	return &Aggregator{
		child:      child,
		groupField: groupField,
		groupType:  groupType,
		aggField:   aggField,
		op:         op,
		desc:       desc,
		groups:     make(map[common.Value]*groupState),
	}, nil
}

func (a *Aggregator) TupleDesc() *storage.TupleDesc {
	return a.desc
}

// Open drains child entirely, building the per-group table, then computes
// the output tuples once so HasNext/Next only ever walk an in-memory slice.
func (a *Aggregator) Open(tid common.TransactionID) error {
	if err := a.child.Open(tid); err != nil {
		return err
	}
	for {
		hasNext, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !hasNext {
			break
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}
		a.mergeTupleIntoGroup(t)
	}

	a.results = a.buildResults()
	a.pos = 0
	return nil
}

// mergeTupleIntoGroup keys this tuple's group by the group field's value
// (a singleton key for NoGrouping), creating the group's state on first
// sight so group order reflects first-insertion-wins.
func (a *Aggregator) mergeTupleIntoGroup(t storage.Tuple) {
	var key common.Value
	if a.groupField != NoGrouping {
		key = t.GetValue(a.groupField)
	}

	state, ok := a.groups[key]
	if !ok {
		state = &groupState{}
		a.groups[key] = state
		a.groupOrder = append(a.groupOrder, key)
	}

	val := t.GetValue(a.aggField)
	state.count++
	switch a.op {
	case COUNT:
		// count alone is already tracked above.
	case SUM, AVG:
		state.sum += val.IntValue()
	case MIN:
		if state.count == 1 || val.Compare(state.min) < 0 {
			state.min = val
		}
	case MAX:
		if state.count == 1 || val.Compare(state.max) > 0 {
			state.max = val
		}
	}
}

// buildResults computes one output value per group. AVG divides sum by
// count here, at emit time, rather than folding the division into the
// running accumulator — an accumulator-level SUM-as-AVG shortcut loses the
// count and produces the wrong answer for any group seen more than once.
func (a *Aggregator) buildResults() []storage.Tuple {
	results := make([]storage.Tuple, 0, len(a.groupOrder))
	for _, key := range a.groupOrder {
		state := a.groups[key]

		var resultVal common.Value
		switch a.op {
		case COUNT:
			resultVal = common.NewIntValue(state.count)
		case SUM:
			resultVal = common.NewIntValue(state.sum)
		case AVG:
			resultVal = common.NewIntValue(state.sum / state.count)
		case MIN:
			resultVal = common.NewIntValue(state.min.IntValue())
		case MAX:
			resultVal = common.NewIntValue(state.max.IntValue())
		}

		if a.groupField == NoGrouping {
			results = append(results, storage.FromValues(resultVal))
		} else {
			results = append(results, storage.FromValues(key, resultVal))
		}
	}
	return results
}

func (a *Aggregator) HasNext() (bool, error) {
	return a.pos < len(a.results), nil
}

func (a *Aggregator) Next() (storage.Tuple, error) {
	common.Assert(a.pos < len(a.results), "Next called with no result available")
	t := a.results[a.pos]
	a.pos++
	return t, nil
}

func (a *Aggregator) Close() error {
	return a.child.Close()
}
