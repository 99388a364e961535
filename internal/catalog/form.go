package catalog

import (
	"context"
	"sync"

	domainerrors "github.com/libroteca/libroteca/internal/errors"
	"github.com/libroteca/libroteca/internal/service"
)

// Field describes one named form field.
type Field struct {
	Name     string
	Required bool
}

// SubmitFunc persists a form draft. editID is empty when the draft creates
// a new record and holds the record's ID when it updates an existing one.
type SubmitFunc func(ctx context.Context, editID string, values map[string]string) error

// Form is a controller for a record form. It holds field values for at most
// one draft at a time, tracks which record (if any) the draft edits, and
// validates required fields before handing the values to its SubmitFunc.
type Form struct {
	mu      sync.Mutex
	fields  []Field
	values  map[string]string
	invalid map[string]bool
	editID  string
	editing bool
	submit  SubmitFunc
}

// NewForm creates a form over the given fields, bound to a submit function.
func NewForm(fields []Field, submit SubmitFunc) *Form {
	return &Form{
		fields:  fields,
		values:  make(map[string]string),
		invalid: make(map[string]bool),
		submit:  submit,
	}
}

// Set stores a field value. Setting a field clears its invalid mark.
// Unknown field names are ignored.
func (f *Form) Set(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.has(name) {
		return
	}
	f.values[name] = value
	delete(f.invalid, name)
}

// Value returns a field's current draft value.
func (f *Form) Value(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[name]
}

// BeginEdit loads a record's values into the form for editing. Any unsaved
// draft, whether a new record or a different edit, is discarded without
// warning.
func (f *Form) BeginEdit(id string, values map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
	f.editID = id
	f.editing = true
	for name, value := range values {
		if f.has(name) {
			f.values[name] = value
		}
	}
}

// Cancel discards the current draft and leaves edit mode.
func (f *Form) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
}

// EditingID returns the ID of the record being edited, and whether the form
// is in edit mode.
func (f *Form) EditingID() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editID, f.editing
}

// IsInvalid reports whether the field failed the last Submit validation.
func (f *Form) IsInvalid(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalid[name]
}

// InvalidFields returns the names of the fields that failed the last Submit
// validation, in field order.
func (f *Form) InvalidFields() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, fld := range f.fields {
		if f.invalid[fld.Name] {
			out = append(out, fld.Name)
		}
	}
	return out
}

// Submit validates and persists the draft. Exactly the required fields that
// are empty get marked invalid; if there are any, Submit returns a
// validation error without calling the submit function. On success the
// draft is cleared and the form leaves edit mode.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	f.invalid = make(map[string]bool)
	for _, fld := range f.fields {
		if fld.Required && f.values[fld.Name] == "" {
			f.invalid[fld.Name] = true
		}
	}
	if len(f.invalid) > 0 {
		missing := make(map[string]string, len(f.invalid))
		for _, fld := range f.fields {
			if f.invalid[fld.Name] {
				missing[fld.Name] = "is required"
			}
		}
		f.mu.Unlock()
		return domainerrors.ValidationWithDetails("required fields are empty", missing)
	}

	editID := f.editID
	values := make(map[string]string, len(f.values))
	for name, value := range f.values {
		values[name] = value
	}
	submit := f.submit
	f.mu.Unlock()

	if err := submit(ctx, editID, values); err != nil {
		return err
	}

	f.mu.Lock()
	f.reset()
	f.mu.Unlock()
	return nil
}

func (f *Form) has(name string) bool {
	for _, fld := range f.fields {
		if fld.Name == name {
			return true
		}
	}
	return false
}

// reset clears values, invalid marks, and the edit target. Callers hold f.mu.
func (f *Form) reset() {
	f.values = make(map[string]string)
	f.invalid = make(map[string]bool)
	f.editID = ""
	f.editing = false
}

// NewAuthorForm builds the author record form wired to the library service.
// An empty edit target creates a new author, otherwise the target is updated.
func NewAuthorForm(library *service.LibraryService) *Form {
	fields := []Field{
		{Name: "fullName", Required: true},
		{Name: "imageUrl", Required: true},
	}
	return NewForm(fields, func(ctx context.Context, editID string, values map[string]string) error {
		req := service.AuthorRequest{
			FullName: values["fullName"],
			ImageURL: values["imageUrl"],
		}
		if editID == "" {
			_, err := library.CreateAuthor(ctx, req)
			return err
		}
		_, err := library.UpdateAuthor(ctx, editID, req)
		return err
	})
}

// NewBookForm builds the book record form wired to the library service.
func NewBookForm(library *service.LibraryService) *Form {
	fields := []Field{
		{Name: "title", Required: true},
		{Name: "imageUrl", Required: true},
		{Name: "authorId", Required: true},
		{Name: "description", Required: true},
	}
	return NewForm(fields, func(ctx context.Context, editID string, values map[string]string) error {
		req := service.BookRequest{
			Title:       values["title"],
			ImageURL:    values["imageUrl"],
			Description: values["description"],
			AuthorID:    values["authorId"],
		}
		if editID == "" {
			_, err := library.CreateBook(ctx, req)
			return err
		}
		_, err := library.UpdateBook(ctx, editID, req)
		return err
	})
}
