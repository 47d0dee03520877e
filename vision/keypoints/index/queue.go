package index

// queueItem is a node waiting to be explored and its distance to the query.
type queueItem struct {
	node     int
	distance int
}

// nodeQueue is a min-heap of nodes keyed by distance to the query.
type nodeQueue struct {
	items []queueItem
}

// Pop removes the closest node in the queue and returns it.
func (q *nodeQueue) Pop() queueItem {
	if len(q.items) == 0 {
		panic("node queue is empty")
	}
	out := q.items[0]
	q.items[0] = q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	q.heapify(0)
	return out
}

// Len returns the length of the queue.
func (q *nodeQueue) Len() int {
	return len(q.items)
}

// Reset clears all items from the queue.
func (q *nodeQueue) Reset() {
	q.items = q.items[:0]
}

// Insert adds the provided item to the queue.
func (q *nodeQueue) Insert(item queueItem) {
	q.items = append(q.items, item)
	i := len(q.items) - 1
	for i != 0 && q.items[i].distance < q.items[q.parent(i)].distance {
		q.swap(i, q.parent(i))
		i = q.parent(i)
	}
}

func (q *nodeQueue) left(i int) int { return 2*i + 1 }

func (q *nodeQueue) right(i int) int { return 2*i + 2 }

func (q *nodeQueue) parent(i int) int { return (i - 1) / 2 }

func (q *nodeQueue) swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

// heapify maintains the min-heap property.
func (q *nodeQueue) heapify(i int) {
	left := q.left(i)
	right := q.right(i)
	smallest := i
	if left < len(q.items) && q.items[left].distance < q.items[i].distance {
		smallest = left
	}

	if right < len(q.items) && q.items[right].distance < q.items[smallest].distance {
		smallest = right
	}

	if smallest != i {
		q.swap(i, smallest)
		q.heapify(smallest)
	}
}
