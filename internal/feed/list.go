package feed

import "bookshare/pkg/domain"

// orderedBooks is a list of books unique by ID that keeps first-seen order.
type orderedBooks struct {
	items []domain.Book
	index map[string]int
}

func newOrderedBooks(capacity int) *orderedBooks {
	return &orderedBooks{
		items: make([]domain.Book, 0, capacity),
		index: make(map[string]int, capacity),
	}
}

// add appends b unless a book with the same ID is already present.
func (o *orderedBooks) add(b domain.Book) bool {
	if _, ok := o.index[b.ID]; ok {
		return false
	}
	o.index[b.ID] = len(o.items)
	o.items = append(o.items, b)
	return true
}

// replace drops everything and loads books in order.
func (o *orderedBooks) replace(books []domain.Book) {
	o.items = make([]domain.Book, 0, len(books))
	o.index = make(map[string]int, len(books))
	o.merge(books)
}

// merge adds the books not seen yet, preserving their order. Existing books keep their position.
func (o *orderedBooks) merge(books []domain.Book) int {
	added := 0
	for _, b := range books {
		if o.add(b) {
			added++
		}
	}
	return added
}

func (o *orderedBooks) clear() {
	o.replace(nil)
}

func (o *orderedBooks) snapshot() []domain.Book {
	out := make([]domain.Book, len(o.items))
	copy(out, o.items)
	return out
}

func (o *orderedBooks) len() int {
	return len(o.items)
}
