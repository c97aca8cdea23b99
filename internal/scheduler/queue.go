package scheduler

import (
	"container/heap"

	"github.com/riskibarqy/meme-party/internal/domain/phasetask"
)

// taskQueue is a min-heap ordered by (FireAt, seq) with an index by task id so
// cancellation is O(log n).
type taskQueue struct {
	items []*queuedTask
	byID  map[string]*queuedTask
}

type queuedTask struct {
	task  phasetask.Task
	seq   uint64
	index int
}

func newTaskQueue() *taskQueue {
	return &taskQueue{byID: make(map[string]*queuedTask)}
}

func (q *taskQueue) Len() int { return len(q.items) }

func (q *taskQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if !a.task.FireAt.Equal(b.task.FireAt) {
		return a.task.FireAt.Before(b.task.FireAt)
	}
	return a.seq < b.seq
}

func (q *taskQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *taskQueue) Push(x any) {
	item := x.(*queuedTask)
	item.index = len(q.items)
	q.items = append(q.items, item)
}

func (q *taskQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	q.items = old[:n-1]
	return item
}

// add queues task; seq is its creation number and breaks FireAt ties.
func (q *taskQueue) add(task phasetask.Task, seq uint64) {
	item := &queuedTask{task: task, seq: seq}
	heap.Push(q, item)
	q.byID[task.ID] = item
}

func (q *taskQueue) remove(id string) (phasetask.Task, bool) {
	item, ok := q.byID[id]
	if !ok {
		return phasetask.Task{}, false
	}
	heap.Remove(q, item.index)
	delete(q.byID, id)
	return item.task, true
}

func (q *taskQueue) peek() (phasetask.Task, bool) {
	if len(q.items) == 0 {
		return phasetask.Task{}, false
	}
	return q.items[0].task, true
}

func (q *taskQueue) popMin() phasetask.Task {
	item := heap.Pop(q).(*queuedTask)
	delete(q.byID, item.task.ID)
	return item.task
}

func (q *taskQueue) idsForGame(code string) []string {
	var ids []string
	for _, item := range q.items {
		if item.task.GameCode == code {
			ids = append(ids, item.task.ID)
		}
	}
	return ids
}
