package live

import (
	"context"

	"github.com/narastore/narastore/internal/rfp"
	"github.com/narastore/narastore/internal/storage"
)

// RFPs is the newest-first list of every RFP.
func RFPs(s *storage.Store) Query[rfp.RFP] {
	return Query[rfp.RFP]{
		Collection: storage.CollectionRFPs,
		Fetch:      s.ListRFPs,
	}
}

// Todos lists todos matching f, newest first.
func Todos(s *storage.Store, f storage.TodoFilter) Query[rfp.Todo] {
	return Query[rfp.Todo]{
		Collection: storage.CollectionTodos,
		Fetch: func(ctx context.Context) ([]rfp.Todo, error) {
			return s.ListTodos(ctx, f)
		},
	}
}

// Personnel is the roster ordered by name.
func Personnel(s *storage.Store) Query[rfp.Personnel] {
	return Query[rfp.Personnel]{
		Collection: storage.CollectionPersonnel,
		Fetch:      s.ListPersonnel,
	}
}
