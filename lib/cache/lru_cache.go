package cache

type LRUNode[K comparable, V any] struct {
	Key K
	Val V

	Prev *LRUNode[K, V]
	Next *LRUNode[K, V]
}

// LRU is not safe for concurrent use.
type LRU[K comparable, V any] struct {
	capacity int
	cache    map[K]*LRUNode[K, V]
	onEvict  func(K, V)

	left  *LRUNode[K, V]
	right *LRUNode[K, V]
}

// NewLRU creates a cache holding at most capacity entries. onEvict, if not
// nil, is called for every entry pushed out or removed.
func NewLRU[K comparable, V any](capacity int, onEvict func(K, V)) *LRU[K, V] {
	left, right := &LRUNode[K, V]{}, &LRUNode[K, V]{}

	left.Next = right
	right.Prev = left

	return &LRU[K, V]{
		left:     left,
		right:    right,
		capacity: capacity,
		onEvict:  onEvict,
		cache:    make(map[K]*LRUNode[K, V]),
	}
}

func (l *LRU[K, V]) Put(key K, value V) {
	node, exists := l.cache[key]
	if exists {
		l.deleteNode(node)
	}

	node = &LRUNode[K, V]{Key: key, Val: value}
	l.cache[key] = node
	l.insertNode(node)

	if l.CapacityReached() {
		l.Evict()
	}
}

func (l *LRU[K, V]) Get(key K) (V, bool) {
	node, exists := l.cache[key]
	if !exists {
		var zero V
		return zero, exists
	}

	l.deleteNode(node)
	l.insertNode(node)

	return node.Val, exists
}

// Remove drops key from the cache and runs the eviction callback for it.
func (l *LRU[K, V]) Remove(key K) {
	node, exists := l.cache[key]
	if !exists {
		return
	}

	l.deleteNode(node)
	delete(l.cache, key)
	l.evicted(node)
}

// Purge removes every entry.
func (l *LRU[K, V]) Purge() {
	for l.Len() > 0 {
		l.Evict()
	}
}

func (l *LRU[K, V]) Len() int {
	return len(l.cache)
}

func (l *LRU[K, V]) CapacityReached() bool {
	return len(l.cache) > l.capacity
}

func (l *LRU[K, V]) Evict() {
	lru := l.left.Next
	if lru == l.right {
		return
	}

	l.deleteNode(lru)
	delete(l.cache, lru.Key)
	l.evicted(lru)
}

func (l *LRU[K, V]) evicted(node *LRUNode[K, V]) {
	if l.onEvict != nil {
		l.onEvict(node.Key, node.Val)
	}
}

func (l *LRU[K, V]) insertNode(node *LRUNode[K, V]) {
	prev, next := l.right.Prev, l.right

	node.Prev = prev
	node.Next = next

	prev.Next = node
	next.Prev = node
}

func (l *LRU[K, V]) deleteNode(node *LRUNode[K, V]) {
	prev, next := node.Prev, node.Next

	prev.Next = next
	next.Prev = prev
}
