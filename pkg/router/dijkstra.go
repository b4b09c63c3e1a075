package router

import (
	"container/heap"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
)

// edge is one directed, currently-passable traversal of a path.
type edge struct {
	path        *kerneltypes.Path
	source      int64
	destination int64
	forward     bool
}

// stateKey identifies a Dijkstra search state: which point, and what
// orientation tag the step that reached it carried (so a turn-penalty or
// composite evaluator can see consecutive steps' tags).
type stateKey struct {
	point int64
	tag   string
}

// candidate is the best-known path to a stateKey.
type candidate struct {
	key   stateKey
	cost  int64
	steps []kerneltypes.Step
}

// searchItem is a candidate queued in the priority queue. Ties on cost are
// broken by comparing the destination-point id sequence of the two
// candidates' steps lexicographically — the lower id at the first point
// of difference wins: ties are broken by lower destination-point id.
type searchItem struct {
	candidate
	index int
}

type priorityQueue []*searchItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	return lexicographicallyLess(pq[i].steps, pq[j].steps)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*searchItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

func lexicographicallyLess(a, b []kerneltypes.Step) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].DestinationPoint.ID != b[i].DestinationPoint.ID {
			return a[i].DestinationPoint.ID < b[i].DestinationPoint.ID
		}
	}
	return len(a) < len(b)
}

// shortestPaths runs a label-setting Dijkstra search from source over
// adjacency, returning the best settled candidate per distinct point
// reached (across every orientation tag the search explored). The
// evaluator supplies step cost; adjacency must already be filtered to
// edges passable by the vehicle in question.
func shortestPaths(source int64, adjacency map[int64][]edge, evaluator Evaluator) map[int64]candidate {
	best := make(map[stateKey]candidate)
	settled := make(map[stateKey]bool)

	pq := &priorityQueue{}
	heap.Init(pq)

	start := stateKey{point: source, tag: ""}
	best[start] = candidate{key: start, cost: 0, steps: nil}
	heap.Push(pq, &searchItem{candidate: best[start]})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*searchItem)
		cur := item.candidate
		if settled[cur.key] {
			continue
		}
		settled[cur.key] = true

		for _, e := range adjacency[cur.key.point] {
			stepCost, tag := evaluator.StepCost(e.path, cur.key.tag)
			if stepCost < 0 {
				stepCost = 0
			}
			nextKey := stateKey{point: e.destination, tag: tag}
			newCost := cur.cost + stepCost
			newSteps := append(append([]kerneltypes.Step(nil), cur.steps...), kerneltypes.Step{
				Path:             e.path.Ref(),
				DestinationPoint: kerneltypes.NewRef(kerneltypes.ClassPoint, e.destination, ""),
				Orientation:      orientationForEdge(e),
				Index:            len(cur.steps),
			})

			existing, ok := best[nextKey]
			better := !ok || newCost < existing.cost ||
				(newCost == existing.cost && lexicographicallyLess(newSteps, existing.steps))
			if better && !settled[nextKey] {
				best[nextKey] = candidate{key: nextKey, cost: newCost, steps: newSteps}
				heap.Push(pq, &searchItem{candidate: best[nextKey]})
			}
		}
	}

	// Collapse per-state results down to the best candidate per point,
	// since the tag dimension is an internal search device only.
	perPoint := make(map[int64]candidate)
	for key, cand := range best {
		if !settled[key] {
			continue
		}
		existing, ok := perPoint[key.point]
		if !ok || cand.cost < existing.cost ||
			(cand.cost == existing.cost && lexicographicallyLess(cand.steps, existing.steps)) {
			perPoint[key.point] = cand
		}
	}
	return perPoint
}

func orientationForEdge(e edge) float64 {
	if e.forward {
		return 0
	}
	return 180
}
